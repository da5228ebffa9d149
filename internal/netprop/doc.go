// Package netprop implements replication-aware property wrappers.
//
// NetworkValue[T] holds one value; every Set stores the value and then
// synchronously notifies subscribers with it, even when the new value equals
// the old one.
//
// NetworkCollection[T] holds an ordered sequence. Insert, RemoveAt, Replace,
// Move and Clear each emit exactly one structured Change describing the
// operation and the affected indices and items.
//
// Both wrappers expose Suppress, a scoped guard that silences notifications
// while an inbound remote action is applied:
//
//	release := coll.Suppress()
//	defer release()
//
// Entering the guard while already suppressed returns a no-op release, so
// nested scopes never re-enable notifications early.
//
// Wrappers are not safe for concurrent use. Callers serialize access per
// container (see package engine).
package netprop
