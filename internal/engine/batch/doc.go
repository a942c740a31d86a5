// Package batch runs an ordered list of remote mutations in fixed-size groups.
//
// A Job partitions its work items into consecutive groups, dispatches every
// item of a group concurrently and waits for all of them to settle before it
// moves on. Key properties:
//   - Groups execute strictly in input order; ordering inside a group is unspecified
//   - One item's failure never prevents its siblings from running or being recorded
//   - A fixed pause between groups keeps the remote API under its rate limit
//   - Cancellation is cooperative and only observed at group boundaries
//
// Successful items are never rolled back. A job that stops early leaves the
// remaining items Pending so callers can resubmit exactly those.
package batch
