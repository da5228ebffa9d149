// Package harness runs replication scenarios against real engines.
//
// Each peer of a scenario owns an engine bound to its own container of the
// scenario's type. Peers are joined by an in-memory network that routes
// like the hub: the first peer is the authority, the others send to it, and
// it answers fetches to the requester and relays applied updates to
// everyone else. Every envelope is JSON-encoded on send and decoded on
// delivery, so scenarios exercise the same wire path as a live session.
//
// # Scenario Format
//
//	name: scoreboard_sync
//	description: "Updates on one replica reach the other"
//	schemas:
//	  - schemas/scoreboard.cue
//	container: Scoreboard
//	peers: [server, alice, bob]
//	flow:
//	  - peer: alice
//	    op: fetch
//	  - peer: alice
//	    op: add
//	    property: Scores
//	    index: 0
//	    items: [10, 20]
//	  - peer: bob
//	    op: remove
//	    property: Scores
//	    index: 5
//	    expect_error: INDEX_ERROR
//	  - peer: server
//	    op: send
//	    from: mallory
//	    envelope: {kind: set, payload: [Nope, 1]}
//	    expect_error: SCHEMA_ERROR
//	assertions:
//	  - type: converged
//	  - type: items
//	    peer: bob
//	    property: Scores
//	    equals: [10, 20]
//	  - type: trace_count
//	    kind: add
//	    to: bob
//	    count: 1
//
// Ops are fetch, set, add, move (index to to), remove, replace, reset and
// send. The network is drained after every step; a step's expect_error
// names the first failure code raised locally or during that drain.
//
// # Assertion Types
//
//   - converged: listed peers (default all) share one container digest
//   - value: a value property on a peer equals the given element
//   - items: a collection property on a peer equals the given list
//   - trace_contains: an envelope of kind (optionally from, to, payload) was delivered
//   - trace_count: exactly count envelopes of kind (optionally from, to) were delivered
//
// Traces are deterministic, so RunWithGolden can compare them with
// testdata/golden files.
package harness
