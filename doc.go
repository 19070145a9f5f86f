// Package auth provides account registration, cookie sessions and a
// mailed password reset for the student portal.
//
// Sessions:
//   - Login issues a 24h HS256 token and appends it to the user's list of
//     live sessions. The browser cookie that carries it lives 2500 seconds,
//     independently of the token expiry.
//   - Resolve accepts a token only while it is signed, unexpired and still
//     listed on its owner, so Logout revokes a token before it expires.
//   - Registration returns a token that is never listed. Clients log in to
//     get a usable session.
//
// Password reset:
//   - RequestReset stores a 120s reset token on the user, replacing any
//     pending one, and mails a {base}/forgotpassword/{id}/{token} link.
//   - VerifyReset and CompleteReset require the token to match the stored
//     one and to verify. CompleteReset clears the stored token and revokes
//     every session of the user.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter for registration, login,
//     logout and reset events. Sinks run best-effort (errors are logged).
//     Metrics implements it on top of Prometheus counters.
package auth
