package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/metrics"
)

// Checkpoint is the stored snapshot of one container type.
type Checkpoint struct {
	ContainerType string
	Digest        string
	Seq           int64
	Snapshot      container.Snapshot
}

// Summary describes a checkpoint without its snapshot body.
type Summary struct {
	ContainerType string `json:"container_type"`
	Digest        string `json:"digest"`
	Seq           int64  `json:"seq"`
	Properties    int    `json:"properties"`
}

// WriteCheckpoint stores the current snapshot of c, replacing any previous
// checkpoint for the same container type. seq is the engine clock value.
func (s *Store) WriteCheckpoint(ctx context.Context, c *container.Container, seq int64) (Checkpoint, error) {
	start := time.Now()
	defer func() { metrics.CheckpointDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := c.ToSnapshot()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %s: %w", c.Type(), err)
	}
	digest, err := ir.SnapshotDigest(c.Type(), snap.IR())
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %s: %w", c.Type(), err)
	}
	body, err := ir.MarshalCanonical(snap.IR())
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %s: %w", c.Type(), err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (container_type, digest, snapshot, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(container_type) DO UPDATE SET
			digest = excluded.digest,
			snapshot = excluded.snapshot,
			seq = excluded.seq
	`, c.Type(), digest, string(body), seq)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("write checkpoint %s: %w", c.Type(), err)
	}

	return Checkpoint{ContainerType: c.Type(), Digest: digest, Seq: seq, Snapshot: snap}, nil
}

// ReadCheckpoint returns the checkpoint for containerType. The boolean is
// false when none has been written.
func (s *Store) ReadCheckpoint(ctx context.Context, containerType string) (Checkpoint, bool, error) {
	var (
		cp   = Checkpoint{ContainerType: containerType}
		body string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT digest, snapshot, seq FROM checkpoints WHERE container_type = ?
	`, containerType).Scan(&cp.Digest, &body, &cp.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", containerType, err)
	}

	snap, err := parseSnapshot(body)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", containerType, err)
	}
	cp.Snapshot = snap
	return cp, true, nil
}

// Restore applies the stored checkpoint for c's type to c, leaving the
// properties named in skip untouched. It reports whether a checkpoint
// existed. Entries that no longer match the layout are skipped and returned
// as a joined error after the rest were applied.
func (s *Store) Restore(ctx context.Context, c *container.Container, skip ...string) (Checkpoint, bool, error) {
	cp, ok, err := s.ReadCheckpoint(ctx, c.Type())
	if err != nil || !ok {
		return cp, ok, err
	}
	snap := make(container.Snapshot, 0, len(cp.Snapshot))
	for _, e := range cp.Snapshot {
		if !slices.Contains(skip, e.Name) {
			snap = append(snap, e)
		}
	}
	if err := c.ApplySnapshot(snap); err != nil {
		return cp, true, fmt.Errorf("restore %s: %w", c.Type(), err)
	}
	return cp, true, nil
}

// ListCheckpoints summarises every stored checkpoint ordered by container type.
func (s *Store) ListCheckpoints(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT container_type, digest, snapshot, seq
		FROM checkpoints
		ORDER BY container_type COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			sum  Summary
			body string
		)
		if err := rows.Scan(&sum.ContainerType, &sum.Digest, &body, &sum.Seq); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		snap, err := parseSnapshot(body)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", sum.ContainerType, err)
		}
		sum.Properties = len(snap)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return summaries, nil
}

func parseSnapshot(body string) (container.Snapshot, error) {
	v, err := ir.ParseIRValue([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return container.ParseSnapshot(v)
}
