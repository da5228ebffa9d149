// Package engine implements the per-container replication engine.
//
// One Engine exists per container per side: one shared engine on the
// authoritative side, and one private engine per connected participant.
//
// ARCHITECTURE:
//
// Outbound path:
// 1. A local mutation fires a property notification
// 2. The engine's listener composes the matching Action
// 3. The action is stamped with the next Clock seq and raised to OnAction
// 4. The transport encodes it to an Envelope and delivers it
//
// Inbound path:
// 1. The transport decodes an Envelope (HandleEnvelope) or passes an Action
// 2. HandleAction enters ApplyingRemote for the target property
// 3. The mutation runs with that property's notifications suppressed
// 4. ApplyingRemote is left on every exit path and OnUpdated fires
//
// The engine is a synchronous reactive layer. It owns no goroutines, never
// blocks and never retries. Failures are *ReplicationError values scoped to
// the single action that caused them.
//
// The only resynchronization path is a Fetch/Post round trip.
package engine
