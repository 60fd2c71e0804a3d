// Package auth implements the authentication and authorization core for
// farmkeep: credential storage, password hashing, OTP account verification,
// JWT access tokens, rotating refresh tokens, and the role based access
// control policy consulted by every protected endpoint.
package auth
