// Package log provides slog loggers that redact secrets.
//
// The crawler carries bot-challenge clearance cookies and optional custom
// headers. SecureHandler masks any attribute whose key names a credential
// (cookie, authorization, token...) and any value that looks like a
// clearance cookie or bearer token, so verbose logs can be shared safely.
//
//	logger := log.NewLogger(os.Stderr, log.FormatText, verbose)
//	logger.Info("session replaced", "cookie", "cf_clearance=abc") // cookie=***REDACTED***
package log
