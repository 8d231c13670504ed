// Package identity consumes verified identities from the external
// OpenID Connect provider. The service never stores or checks
// credentials; it verifies ID tokens and hands the resulting principal
// to the session resolver.
package identity
