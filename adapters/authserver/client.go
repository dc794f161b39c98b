package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/layer-3/portal/adapters/tokenizer"
	"github.com/layer-3/portal/core"
)

const (
	ChallengePath = "/wallet/challenge"
	VerifyPath    = "/wallet/verify"
	AccountsPath  = "/wallet/accounts"

	// DefaultTimeout bounds a single round trip to the authorization server
	DefaultTimeout = 10 * time.Second
)

var errUnexpectedStatus = errors.New("unexpected status")

// ChallengeRequest is the body of a challenge request. All five fields are
// always sent, empty or not.
type ChallengeRequest struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	State               string `json:"state"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// ChallengeResponse is returned by the challenge endpoint
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// VerifyRequest is the body of a verification request
type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	PublicKey     string `json:"publicKey"`
	Signature     string `json:"signature"`
	ClientID      string `json:"client_id"`
	RedirectURI   string `json:"redirect_uri"`
	State         string `json:"state"`
	Email         string `json:"email"`
}

// VerifyResponse is returned by the verification endpoint
type VerifyResponse struct {
	Code string `json:"code"`
}

// AccountsResponse is returned by the accounts endpoint
type AccountsResponse struct {
	Accounts []AccountDTO `json:"accounts"`
}

// AccountDTO is an account as the server sends it. IDs may be numbers or strings.
type AccountDTO struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
}

// Client talks to the authorization server. It implements
// ports.ChallengeClient, ports.VerificationClient and ports.AccountDirectory.
type Client struct {
	rest        *resty.Client
	credentials *Credentials
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCredentials attaches a bearer credential holder
func WithCredentials(credentials *Credentials) Option {
	return func(c *Client) { c.credentials = credentials }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rest = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{c.logger})

	return c
}

// RequestChallenge asks for a challenge bound to params
func (c *Client) RequestChallenge(ctx context.Context, params core.AuthRequestParams) (core.Challenge, error) {
	req := ChallengeRequest{
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
	}

	var resp ChallengeResponse
	if err := c.do(http.MethodPost, ChallengePath, c.request(ctx).SetBody(req), &resp); err != nil {
		return core.Challenge{}, fmt.Errorf("%w: %v", core.ErrChallengeRequestFailed, err)
	}
	if resp.Challenge == "" {
		return core.Challenge{}, fmt.Errorf("%w: empty challenge", core.ErrChallengeRequestFailed)
	}

	challenge := core.Challenge{Value: resp.Challenge}
	if resp.ExpiresIn > 0 {
		challenge.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	} else if exp, ok := tokenizer.ChallengeExpiry(resp.Challenge); ok {
		challenge.ExpiresAt = exp
	}

	return challenge, nil
}

// Verify submits the signed challenge and returns the authorization code
func (c *Client) Verify(ctx context.Context, v core.VerificationRequest) (core.AuthorizationCode, error) {
	req := VerifyRequest{
		WalletAddress: v.WalletAddress,
		PublicKey:     v.PublicKey,
		Signature:     string(v.Signature),
		ClientID:      v.ClientID,
		RedirectURI:   v.RedirectURI,
		State:         v.State,
		Email:         v.Email,
	}

	var resp VerifyResponse
	if err := c.do(http.MethodPost, VerifyPath, c.request(ctx).SetBody(req), &resp); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrVerificationFailed, err)
	}
	if resp.Code == "" {
		return "", fmt.Errorf("%w: empty code", core.ErrVerificationFailed)
	}

	return core.AuthorizationCode(resp.Code), nil
}

// Accounts lists the accounts registered for a wallet address
func (c *Client) Accounts(ctx context.Context, address string) ([]core.Account, error) {
	var resp AccountsResponse
	req := c.request(ctx).SetQueryParam("address", address)
	if err := c.do(http.MethodGet, AccountsPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]core.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, core.Account{
			ID:    rawID(a.ID),
			Name:  a.Name,
			Email: a.Email,
		})
	}
	return accounts, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.credentials.Token())
}

// do performs one JSON round trip. Errors carry the method, path and status
// only; request and response bodies never end up in them.
func (c *Client) do(method, path string, req *resty.Request, out any) error {
	resp, err := req.SetResult(out).Execute(method, path)
	if err != nil {
		if resp != nil && resp.RawResponse != nil && resp.IsSuccess() {
			return fmt.Errorf("%s %s: malformed response", method, path)
		}
		return fmt.Errorf("%s %s: transport error", method, path)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.logger.Warn("authorization server rejected credentials", "path", path)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s %s: %w %d", method, path, errUnexpectedStatus, resp.StatusCode())
	}

	return nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
