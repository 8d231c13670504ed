// Package api exposes the HTTP surface: church and membership
// management, the audit viewer, and the sign-in flow against the
// external identity provider. Handlers read the resolved session from
// the request context and delegate authorization to the services they
// call.
package api
