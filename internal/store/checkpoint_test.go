package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/testutil"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	src := testutil.Shared(t)
	container.MustValue[string](src, schema.PropReplicatedString).Set("hello")
	require.NoError(t, container.MustCollection[ir.InstanceData](src, schema.PropOpenInstances).Append(ir.InstanceData{
		Module:     "TestProtocol",
		InstanceID: "inst-1",
		Title:      "Test Protocol",
	}))

	written, err := s.WriteCheckpoint(ctx, src, 7)
	require.NoError(t, err)
	want, err := src.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, written.Digest)

	got, ok, err := s.ReadCheckpoint(ctx, schema.ReplicatedContainer)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.Seq)
	assert.Equal(t, written.Snapshot, got.Snapshot)

	dst := testutil.Shared(t)
	_, ok, err = s.Restore(ctx, dst)
	require.NoError(t, err)
	require.True(t, ok)

	dstDigest, err := dst.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, dstDigest)
}

func TestCheckpoint_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := testutil.Shared(t)

	_, err := s.WriteCheckpoint(ctx, c, 1)
	require.NoError(t, err)
	container.MustValue[string](c, schema.PropReplicatedString).Set("second")
	_, err = s.WriteCheckpoint(ctx, c, 2)
	require.NoError(t, err)

	list, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].Seq)
	assert.Equal(t, 3, list[0].Properties)
}

func TestReadCheckpoint_Missing(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.ReadCheckpoint(context.Background(), "Nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Restore(context.Background(), testutil.Shared(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListCheckpoints_Ordered(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	reg := schema.Builtin()
	for _, typ := range []string{schema.ReplicatedContainer, schema.ClientContainer} {
		layout, _ := reg.Lookup(typ)
		_, err := s.WriteCheckpoint(ctx, container.New(layout), 0)
		require.NoError(t, err)
	}

	list, err := s.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, schema.ClientContainer, list[0].ContainerType)
	assert.Equal(t, schema.ReplicatedContainer, list[1].ContainerType)
}

func TestListCheckpoints_Empty(t *testing.T) {
	list, err := createTestStore(t).ListCheckpoints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestRestore_SkipsStaleEntries(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO checkpoints (container_type, digest, snapshot, seq) VALUES (?, ?, ?, ?)`,
		schema.ReplicatedContainer, "x", `[["ReplicatedString",5],["Gone","y"]]`, 3)
	require.NoError(t, err)

	c := testutil.Shared(t)
	_, ok, err := s.Restore(ctx, c)
	assert.True(t, ok)
	var entryErr *container.EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, schema.PropReplicatedString, entryErr.Name)
}

func TestRestore_Skip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	src := testutil.Shared(t)
	container.MustValue[string](src, schema.PropReplicatedString).Set("kept")
	require.NoError(t, container.MustCollection[ir.ModuleData](src, schema.PropModules).Append(ir.ModuleData{
		Module:     "Old",
		ModuleType: ir.ModuleProtocol,
	}))
	_, err := s.WriteCheckpoint(ctx, src, 1)
	require.NoError(t, err)

	dst := testutil.Shared(t)
	_, ok, err := s.Restore(ctx, dst, schema.PropModules)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", container.MustValue[string](dst, schema.PropReplicatedString).Get())
	assert.Zero(t, container.MustCollection[ir.ModuleData](dst, schema.PropModules).Len())
}
