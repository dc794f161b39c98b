package reporter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/layer-3/portal/ports"
)

const (
	// LogsPath is appended to the collector base URL
	LogsPath = "/logs"

	defaultApp     = "DAuth-admin-portal"
	defaultSource  = "web"
	defaultLevel   = "error"
	defaultTimeout = 3 * time.Second
)

// TokenIssuer produces the x-api-token header value
type TokenIssuer interface {
	Issue() (string, error)
}

// Payload is the JSON document posted to the log collector
type Payload struct {
	Source           string         `json:"source"`
	Apps             string         `json:"apps"`
	Level            string         `json:"level"`
	Endpoint         string         `json:"endpoint"`
	Message          string         `json:"message"`
	Error            string         `json:"error"`
	UserID           string         `json:"user_id,omitempty"`
	OccurredAtUTC    string         `json:"occurred_at_utc"`
	OccurredAtUnixMs int64          `json:"occurred_at_unix_ms"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// HTTPReporter posts failure reports to a log collector. Every error on the
// way is logged and dropped so reporting never masks the failure it reports.
type HTTPReporter struct {
	url    string
	app    string
	rest   *resty.Client
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

// NewHTTPReporter creates a reporter posting to {baseURL}/logs. tokens may be nil.
func NewHTTPReporter(baseURL string, tokens TokenIssuer, logger *slog.Logger) *HTTPReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReporter{
		url:    strings.TrimRight(baseURL, "/") + LogsPath,
		app:    defaultApp,
		rest:   resty.New().SetTimeout(defaultTimeout),
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Report ships the report; it never fails
func (r *HTTPReporter) Report(ctx context.Context, report ports.ErrorReport) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("error reporter panicked", "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
	defer cancel()

	req := r.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(r.payload(report))
	if r.tokens != nil {
		if token, err := r.tokens.Issue(); err == nil {
			req.SetHeader("x-api-token", token)
		} else {
			r.logger.Debug("sending error report without api token", "error", err)
		}
	}

	resp, err := req.Post(r.url)
	if err != nil {
		r.logger.Warn("failed to send error report", "error", err)
		return
	}

	if resp.IsError() {
		r.logger.Warn("log collector rejected error report", "status", resp.StatusCode())
	}
}

func (r *HTTPReporter) payload(report ports.ErrorReport) Payload {
	now := r.now()

	level := report.Level
	if level == "" {
		level = defaultLevel
	}

	metadata := map[string]any{"runtime": "server"}
	for k, v := range report.Metadata {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		metadata[k] = v
	}

	return Payload{
		Source:           defaultSource,
		Apps:             r.app,
		Level:            level,
		Endpoint:         report.Endpoint,
		Message:          report.Message,
		Error:            report.Error,
		UserID:           report.UserID,
		OccurredAtUTC:    now.UTC().Format(time.RFC3339Nano),
		OccurredAtUnixMs: now.UnixMilli(),
		Metadata:         metadata,
	}
}

// Nop discards reports
type Nop struct{}

// Report does nothing
func (Nop) Report(context.Context, ports.ErrorReport) {}
