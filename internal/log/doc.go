// Package log provides the application logger, a thin layer over log/slog
// that masks secrets before they are written.
//
// Scraping sessions carry cookies, auth headers and signed URLs. The
// SecureHandler masks:
//   - values logged under keys such as cookie, authorization, session or token
//   - values that look like bearer tokens, JWTs or private keys
//   - user info and secret query parameters (token, key, sig, ...) inside URLs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
