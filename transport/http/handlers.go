package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/service"
)

// LoginHandlers contains HTTP handlers for the login handshake
type LoginHandlers struct {
	sessions     *Sessions
	cookieSecure bool
}

// NewLoginHandlers creates new login handlers
func NewLoginHandlers(sessions *Sessions, cookieSecure bool) *LoginHandlers {
	return &LoginHandlers{
		sessions:     sessions,
		cookieSecure: cookieSecure,
	}
}

type failureResponse struct {
	Reason  core.Reason `json:"reason"`
	Message string      `json:"message"`
}

type walletResponse struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
}

type accountResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type handshakeResponse struct {
	HandshakeID string            `json:"handshake_id"`
	State       core.State        `json:"state"`
	Status      string            `json:"status,omitempty"`
	Failure     *failureResponse  `json:"failure,omitempty"`
	Wallet      *walletResponse   `json:"wallet,omitempty"`
	Accounts    []accountResponse `json:"accounts"`
	SelectedID  string            `json:"selected_account_id,omitempty"`
	RedirectTo  string            `json:"redirect_to,omitempty"`
}

func newHandshakeResponse(snap service.Snapshot) handshakeResponse {
	resp := handshakeResponse{
		HandshakeID: snap.HandshakeID,
		State:       snap.State,
		Status:      snap.Status,
		Accounts:    make([]accountResponse, 0, len(snap.Accounts)),
		RedirectTo:  snap.RedirectTo,
	}
	if snap.Failure != nil {
		resp.Failure = &failureResponse{Reason: snap.Failure.Reason, Message: snap.Failure.Message}
	}
	if snap.Wallet != nil {
		resp.Wallet = &walletResponse{Address: snap.Wallet.AccountAddress, PublicKey: snap.Wallet.PublicKey}
	}
	for _, a := range snap.Accounts {
		resp.Accounts = append(resp.Accounts, accountResponse{ID: a.ID, Name: a.Name, Email: a.Email})
	}
	if snap.Selected != nil {
		resp.SelectedID = snap.Selected.ID
	}
	return resp
}

// Login creates or resumes the handshake for the authorization request in
// the query and starts wallet detection
func (h *LoginHandlers) Login(c *gin.Context) {
	params := core.ParseAuthRequest(c.Request.URL.Query())
	if err := params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid authorization request: " + err.Error()})
		return
	}

	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		if sess, ok := h.sessions.Get(id); ok {
			if sess.Coordinator.Params() == params {
				c.JSON(http.StatusOK, newHandshakeResponse(sess.Coordinator.Snapshot()))
				return
			}
			h.sessions.Drop(id)
		}
	}

	sess := h.sessions.Create(params)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sess.ID, int(h.sessions.ttl.Seconds()), "/", "", h.cookieSecure, true)

	go func() {
		_ = sess.Coordinator.Start(sess.Context())
	}()

	c.JSON(http.StatusOK, newHandshakeResponse(sess.Coordinator.Snapshot()))
}

// Status returns the current handshake snapshot
func (h *LoginHandlers) Status(c *gin.Context) {
	sess := sessionFrom(c)
	c.JSON(http.StatusOK, newHandshakeResponse(sess.Coordinator.Snapshot()))
}

// Select records the account the user picked
func (h *LoginHandlers) Select(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sess := sessionFrom(c)
	err := sess.Coordinator.Handle(sess.Context(), service.Event{Type: service.EventSelect, AccountID: req.AccountID})
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to select account"

		switch {
		case errors.Is(err, core.ErrUnknownAccount):
			statusCode = http.StatusBadRequest
			errorMsg = "Unknown account"
		case errors.Is(err, core.ErrInvalidTransition):
			statusCode = http.StatusConflict
			errorMsg = "Accounts are not ready for selection"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, newHandshakeResponse(sess.Coordinator.Snapshot()))
}

// Confirm runs challenge, signature, verification and redirect
func (h *LoginHandlers) Confirm(c *gin.Context) {
	sess := sessionFrom(c)

	err := sess.Coordinator.Handle(sess.Context(), service.Event{Type: service.EventConfirm})
	snap := newHandshakeResponse(sess.Coordinator.Snapshot())
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Login failed"

		var failure *core.Failure
		switch {
		case errors.As(err, &failure):
			statusCode = failureStatus(failure.Reason)
			errorMsg = failure.Message
		case errors.Is(err, core.ErrSelectionRequired):
			statusCode = http.StatusBadRequest
			errorMsg = snap.Status
		case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, service.ErrSuperseded):
			statusCode = http.StatusConflict
			errorMsg = "Login is not awaiting confirmation"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg, "handshake": snap})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redirect_to": sess.Navigator.Target(),
		"handshake":   snap,
	})
}

// Retry resets the handshake and runs wallet detection again
func (h *LoginHandlers) Retry(c *gin.Context) {
	sess := sessionFrom(c)

	state := sess.Coordinator.Snapshot().State
	if !state.Retryable() {
		errorMsg := "Login is still in progress"
		if state == core.StateRedirecting || state == core.StateCompleted {
			errorMsg = "Login already completed"
		}
		c.JSON(http.StatusConflict, gin.H{"error": errorMsg})
		return
	}

	go func() {
		_ = sess.Coordinator.Handle(sess.Context(), service.Event{Type: service.EventRetry})
	}()

	c.JSON(http.StatusAccepted, newHandshakeResponse(sess.Coordinator.Snapshot()))
}

// Cancel drops the handshake and sends the browser back home
func (h *LoginHandlers) Cancel(c *gin.Context) {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		h.sessions.Drop(id)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.cookieSecure, true)

	c.Redirect(http.StatusFound, "/")
}

// Health reports liveness
func (h *LoginHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func failureStatus(reason core.Reason) int {
	switch reason {
	case core.ReasonChallengeRequestFailed:
		return http.StatusBadGateway
	case core.ReasonSignatureRejected:
		return http.StatusForbidden
	case core.ReasonVerificationFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusUnprocessableEntity
	}
}
