package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

// RedirectFinalizer sends the authorization code back to the relying party
type RedirectFinalizer struct {
	navigator ports.Navigator
}

// NewRedirectFinalizer creates a finalizer that navigates with the given navigator
func NewRedirectFinalizer(navigator ports.Navigator) *RedirectFinalizer {
	return &RedirectFinalizer{navigator: navigator}
}

// Finalize builds the redirect target and navigates to it
func (f *RedirectFinalizer) Finalize(ctx context.Context, redirectURI string, code core.AuthorizationCode, state string) (string, error) {
	target := BuildRedirect(redirectURI, code, state)

	if err := f.navigator.Navigate(ctx, target); err != nil {
		return target, fmt.Errorf("failed to navigate: %w", err)
	}

	return target, nil
}

// BuildRedirect returns {redirectURI}?code=...&state=... with both values
// escaped like encodeURIComponent. The state is echoed exactly, an absent
// state becomes an empty value.
func BuildRedirect(redirectURI string, code core.AuthorizationCode, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}

	return redirectURI + sep +
		"code=" + encodeComponent(string(code)) +
		"&state=" + encodeComponent(state)
}

// encodeURIComponent leaves these unescaped, url.QueryEscape does not
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
