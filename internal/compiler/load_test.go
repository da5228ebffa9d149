package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/ir"
)

func schemaTypes(schemas []ir.ContainerSchema) []string {
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = s.Type
	}
	return out
}

func TestLoadDir(t *testing.T) {
	result, errs := LoadDir("testdata/schemas", LoadModeCollectAll)
	require.Empty(t, errs)

	assert.Equal(t, 2, result.FileCount)
	assert.ElementsMatch(t, []string{"Scoreboard", "Lobby"}, schemaTypes(result.Schemas))
	assert.True(t, result.Positions["Lobby"].IsValid())
}

func TestLoadDirCollectAll(t *testing.T) {
	result, errs := LoadDir("testdata/bad", LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 2)

	got := map[string]bool{}
	for _, err := range errs {
		var le *LoadError
		require.ErrorAs(t, err, &le)
		got[le.Code] = true
	}
	assert.True(t, got[ErrInvalidKind], "missing kind: %v", errs)
	assert.True(t, got[ErrNoProperties], "missing properties: %v", errs)
}

func TestLoadDirFailFast(t *testing.T) {
	_, errs := LoadDir("testdata/bad", LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadDirNotFound(t *testing.T) {
	result, errs := LoadDir("testdata/nope", LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadDirNoFiles(t *testing.T) {
	_, errs := LoadDir(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadDirNoDeclarations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("package test\n\nother: 1\n"), 0644))

	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no container declarations")
}

func TestLoadDirMixedPackages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package one\n\nx: 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte("package two\n\ny: 2\n"), 0644))

	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeLoadFailed, le.Code)
}

func TestLoadFile(t *testing.T) {
	schemas, err := LoadFile("testdata/schemas/scoreboard.cue")
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "Scoreboard", schemas[0].Type)
	assert.Len(t, schemas[0].Properties, 2)
}

func TestLoadFileSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("container: X: {\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/missing.cue")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCueFilesTopLevelOnly(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.cue"), []byte("package test"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.cue"), []byte("package test"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	files, err := cueFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "root.cue")}, files)
}

func TestLoadDirNotADirectory(t *testing.T) {
	_, errs := LoadDir("testdata/schemas/lobby.cue", LoadModeFailFast)
	require.Len(t, errs, 1)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeScanError, le.Code)
}
