// Package supervisor owns the directory of monitored endpoints. It connects,
// refreshes and health-checks each endpoint on its own schedule, tolerates
// partial and transient failures, and publishes discrete notification events
// over a channel. The registry is the only shared mutable state; every entry
// is guarded by its own lock so refreshes for one connection serialize while
// different connections interleave freely.
package supervisor
