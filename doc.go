// Package authflow implements the account and session flow of a small
// two-role (admin, miner) application on top of a pluggable identity
// provider.
//
// Session state:
//   - SessionStore holds the current identity and its profile. It subscribes
//     to the provider's session-change events and applies them in order on a
//     single goroutine, so a stale profile load can never overwrite a newer
//     session. Subscribers receive read-only SessionState snapshots.
//   - ProfileReconciler makes sure every signed-in identity has a row in
//     user_profiles, deriving one from the identity metadata when missing.
//     A missing table degrades to "no profile" instead of failing.
//
// Sign-up:
//   - SignupOrchestrator asks the privileged account step (see package
//     provision) to create a confirmed account, then signs in with the same
//     credentials. An existing account with a matching password is treated
//     as a successful sign-up.
//
// Audit:
//   - AuditLogger appends user_signups and user_activity_log rows on a FIFO
//     worker. Write failures are logged and never reach the caller.
//     ActivitySinks receive every record after the write.
package authflow
