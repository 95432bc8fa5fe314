// Package interfaces lists the seams between the attendance server's layers
// and pins each implementation to the interface it serves.
//
// # Identity
//
//   - auth.TokenAuthority: sign-in, ID token verification, revocation and
//     password reset (identity.Provider)
//   - gate.RoleResolver: authoritative role of a signed-in viewer
//     (auth.ClaimCache, gate.CachedRole)
//   - accounts.UserCreator: account creation on acceptance (identity.Provider)
//
// # Storage
//
//   - accounts.RequestStore: contact-admin submissions (database/requests)
//   - http.UserCounter: admin dashboard totals (database/users)
//
// # Delivery
//
//   - mail.Sender: outbound email (mail.SendGridSender, mail.ConsoleSender)
//   - auth.ResetMailer, accounts.ApprovalNotifier: templated messages routed
//     through the task queue when it runs (tasks.Mailer)
//
// # Pages
//
//   - auth.Renderer: page templates shared by every controller (http.Renderer)
//   - http.Flasher, http.PageNotice: one-shot notices kept in the browser
//     session (auth.SessionManager)
//
// # Background jobs
//
//   - scheduler.ResetCodePurger (identity.Provider)
//   - scheduler.EventCompleter (events.Service)
//
// New implementations should add a line to checks.go:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
package interfaces
