// Package log provides slog loggers that never write control-port
// credentials.
//
// The SecureHandler masks:
//   - attributes whose key names a password, cookie, or other secret
//   - hex-encoded auth cookies and hashed control passwords by value
//   - the argument of AUTHENTICATE commands appearing in messages,
//     string attributes, or errors
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
// The same logger can be handed to tornago when the embedded daemon is used.
package log
