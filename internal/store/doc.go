// Package store provides the SQLite checkpoint store used by `starcore serve`.
//
// Only the latest snapshot of each container type is kept; writing a
// checkpoint replaces the previous one. Snapshots are stored as canonical
// JSON of the [[name, value], ...] form, next to their digest and the engine
// clock value at the time of writing.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout, 5s unless WithBusyTimeout says otherwise
//   - a single open connection, since SQLite allows one writer
package store
