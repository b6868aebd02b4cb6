// Package supervisor keeps a radio relay running in every guild that asked
// for one.
//
// The Supervisor owns the lifecycle of each guild's voice connection and
// audio source. User commands (Join, StartRadio, Stop) act synchronously.
// Failures detected afterwards, either by a stream ending or by the
// HealthMonitor noticing a dead connection, start a background recovery
// sequence that reconnects with exponential backoff until it succeeds, the
// guild is stopped, or the attempt cap is reached.
//
// Per guild, at most one recovery sequence runs at a time and at most one
// connect or move is in flight. Stop always wins: an attempt that is in
// flight when Stop is called tears its own work down instead of streaming.
package supervisor
