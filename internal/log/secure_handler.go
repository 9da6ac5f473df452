package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// Control-port authentication
	"password":                true,
	"passwd":                  true,
	"control_password":        true,
	"controlpassword":         true,
	"hashedcontrolpassword":   true,
	"cookie":                  true,
	"auth_cookie":             true,
	"authcookie":              true,
	"cookie_hex":              true,
	"authenticate":            true,
	"proxy-authorization":     true,
	"authorization":           true,
	"credentials":             true,
	"secret":                  true,
	"token":                   true,
	"hs_ed25519_secret_key":   true,
	"control_auth_cookie_hex": true,
}

// sensitiveKeywords mask any key containing them. Bare "key" is left out
// because it matches too many harmless names.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "cookie",
}

// sensitivePatterns match whole values that must be masked whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	// Hex-encoded 32-byte control auth cookie
	regexp.MustCompile(`^[0-9A-Fa-f]{64}$`),

	// Long opaque tokens
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),

	// Hashed control password as stored in torrc
	regexp.MustCompile(`^16:[0-9A-Fa-f]{58}$`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),

	// ed25519v1 secret (onion service key)
	regexp.MustCompile(`== ed25519v1-secret:`),
}

// authenticateLine matches the argument of an AUTHENTICATE command anywhere
// in a string, quoted password or hex cookie alike.
var authenticateLine = regexp.MustCompile(`(?i)(AUTHENTICATE)[ \t]+("(?:[^"\\]|\\.)*"|[^\s]+)`)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks control-port credentials
// before records reach it. Attributes are masked by key name or by value
// pattern; AUTHENTICATE arguments are masked inline in the message, in
// string values, and in error values.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, RedactAuthenticate(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes sanitized and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	switch a.Value.Kind() {
	case slog.KindString:
		value := a.Value.String()
		if isSensitiveValue(value) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted := RedactAuthenticate(value); redacted != value {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactAuthenticate(msg); redacted != msg {
				return slog.String(a.Key, redacted)
			}
		}
	}

	return a
}

// isSensitiveKey checks the key against the exact list and the keywords.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactAuthenticate masks the argument of every AUTHENTICATE command in s.
func RedactAuthenticate(s string) string {
	if !strings.Contains(strings.ToUpper(s), "AUTHENTICATE") {
		return s
	}
	return authenticateLine.ReplaceAllString(s, "${1} "+MaskValue)
}

// NewSecureLogger creates a text slog.Logger that masks credentials.
// verbose selects Debug level; otherwise only warnings and errors are logged.
// The logger can be passed to tornago and set with slog.SetDefault.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
