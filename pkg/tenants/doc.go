// Package tenants manages churches and their membership. Every
// operation takes the acting session and performs its authorization
// checks before touching the database; successful mutations are
// recorded to the audit trail.
package tenants
