package portal

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/portal/adapters/authserver"
	"github.com/layer-3/portal/adapters/wallet"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/internal/config"
	transport "github.com/layer-3/portal/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAuthServer(t *testing.T, verified chan<- authserver.VerifyRequest) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET(authserver.AccountsPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"accounts": []gin.H{{"id": 7, "name": "Alice", "email": "a@x.com"}}})
	})
	router.POST(authserver.ChallengePath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"challenge": "challenge-" + c.GetHeader("Authorization"), "expires_in": 60})
	})
	router.POST(authserver.VerifyPath, func(c *gin.Context) {
		var req authserver.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		verified <- req
		c.JSON(http.StatusOK, gin.H{"code": "CODE 42"})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestPortal_KeyFileLogin(t *testing.T) {
	// given
	verified := make(chan authserver.VerifyRequest, 1)
	auth := fakeAuthServer(t, verified)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "wallet.key")
	require.NoError(t, crypto.SaveECDSA(keyFile, key))
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	p, err := New(config.Config{
		AuthServerURL:       auth.URL,
		AuthServerToken:     "svc",
		HTTPTimeout:         time.Second,
		WalletKeyFile:       keyFile,
		WalletDetectTimeout: time.Second,
		WalletPollInterval:  10 * time.Millisecond,
		EventsTopic:         "portal.handshake",
		SessionTTL:          time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	var cookie *http.Cookie
	call := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		p.Router().ServeHTTP(w, req)
		for _, c := range w.Result().Cookies() {
			if c.Name == transport.SessionCookie {
				cookie = c
			}
		}
		return w
	}

	// when
	w := call(http.MethodGet, "/login?"+url.Values{
		"client_id":    {"c1"},
		"redirect_uri": {"https://rp.example/cb"},
		"state":        {"a b"},
	}.Encode(), "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		w := call(http.MethodGet, "/login/status", "")
		var snap struct {
			State core.State `json:"state"`
		}
		return w.Code == http.StatusOK &&
			json.Unmarshal(w.Body.Bytes(), &snap) == nil &&
			snap.State == core.StateAwaitingSelection
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, call(http.MethodPost, "/login/select", `{"account_id":"7"}`).Code)
	w = call(http.MethodPost, "/login/confirm", "")

	// then
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://rp.example/cb?code=CODE%2042&state=a%20b", resp.RedirectTo)

	req := <-verified
	assert.Equal(t, address, req.WalletAddress)
	assert.Equal(t, "a@x.com", req.Email)
	assert.True(t, wallet.VerifySignature([]byte("challenge-Bearer svc"), core.Signature(req.Signature), address))
}

func TestPortal_InvalidRedisURL(t *testing.T) {
	_, err := New(config.Config{AuthServerURL: "http://auth", RedisURL: "://nope"}, slog.Default())

	assert.Error(t, err)
}
