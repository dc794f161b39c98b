package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/layer-3/portal/adapters/tokenizer"
	"github.com/layer-3/portal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIssuer struct{}

func (failingIssuer) Issue() (string, error) { return "", errors.New("no secret") }

func TestHTTPReporter_Report(t *testing.T) {
	// given
	var (
		got    Payload
		header string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		header = r.Header.Get("x-api-token")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	issuer := tokenizer.NewAPITokenIssuer("secret", "", 0)
	r := NewHTTPReporter(srv.URL+"/", issuer, nil)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }

	// when
	r.Report(context.Background(), ports.ErrorReport{
		Endpoint: "/login",
		Message:  "Signature rejected or wallet unavailable.",
		Error:    "SignatureRejected",
		Metadata: map[string]any{"handshake_id": "h-1", "client_id": "", "nothing": nil},
	})

	// then
	assert.Equal(t, "/logs", path)
	_, err := issuer.Validate(header)
	require.NoError(t, err)

	assert.Equal(t, "web", got.Source)
	assert.Equal(t, "DAuth-admin-portal", got.Apps)
	assert.Equal(t, "error", got.Level)
	assert.Equal(t, "/login", got.Endpoint)
	assert.Equal(t, "SignatureRejected", got.Error)
	assert.Equal(t, int64(1700000000000), got.OccurredAtUnixMs)
	assert.Equal(t, "2023-11-14T22:13:20Z", got.OccurredAtUTC)
	assert.Equal(t, "h-1", got.Metadata["handshake_id"])
	assert.Equal(t, "server", got.Metadata["runtime"])
	assert.NotContains(t, got.Metadata, "client_id")
	assert.NotContains(t, got.Metadata, "nothing")
}

func TestHTTPReporter_SwallowsFailures(t *testing.T) {
	t.Run("collector down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		r := NewHTTPReporter(url, failingIssuer{}, nil)

		assert.NotPanics(t, func() {
			r.Report(context.Background(), ports.ErrorReport{Message: "m"})
		})
	})

	t.Run("collector rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		assert.NotPanics(t, func() {
			NewHTTPReporter(srv.URL, nil, logger).Report(context.Background(), ports.ErrorReport{})
		})
		assert.Contains(t, logs.String(), "log collector rejected error report")
		assert.Contains(t, logs.String(), "status=500")
	})

	t.Run("cancelled caller still reports", func(t *testing.T) {
		delivered := make(chan struct{}, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			delivered <- struct{}{}
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		NewHTTPReporter(srv.URL, nil, nil).Report(ctx, ports.ErrorReport{Message: "m"})

		select {
		case <-delivered:
		default:
			t.Fatal("report was not delivered")
		}
	})
}
