// Package audit records a durable, diffable trail of every mutation.
//
// Each successful mutation produces one Entry carrying a field-level
// diff between prior and new state. Entries are append-only: nothing
// in the application updates or deletes them, only the age-based
// retention job removes rows past the retention window.
//
// Writes are best-effort by design. A failed audit insert is logged to
// a fallback channel and counted, but never rolls back or fails the
// primary mutation: availability of the primary action takes priority
// over completeness of the trail.
package audit
