// Package middleware provides the request-boundary layer: route
// classification and tenant enforcement, request IDs, and sign-in
// throttling.
//
// The Enforcer is the only place authentication and authorization
// failures are turned into redirects. Handlers behind it may assume a
// valid, authorized session is on the context.
package middleware
