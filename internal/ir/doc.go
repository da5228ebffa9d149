// Package ir provides the transport-neutral value and schema types shared by
// every replication layer.
//
// Wire payloads are literal trees built from IRValue (null, string, int, bool,
// array, object). Payloads carry no per-field type tags; the receiving side
// decodes them against a statically declared ContainerSchema.
//
// This package contains type definitions and codecs only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Snapshot digests use RFC 8785 canonical JSON
//   - All JSON tags use snake_case
package ir
