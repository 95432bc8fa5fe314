// Package auth connects browser sessions to the identity provider.
//
// Every request gets a Client: a session.Store resolved from the ID token
// kept in the scs session, plus a ClaimCache so the token is verified at
// most once per request. RequireRole mounts a gate.Gate on that store for
// each protected route; gates on nested routes share the store and the
// cached verification.
//
//	router.Use(sessions.SessionLoadSave(), mw.ClientSession())
//	admin := router.Group("/admin", mw.RequireRole(entities.RoleAdmin))
//
// Denied browser requests are redirected (with a flashed notice on a role
// mismatch); denied API requests get a JSON ErrorResponse.
package auth
