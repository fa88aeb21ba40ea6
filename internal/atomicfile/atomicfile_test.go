package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_CreatesFileWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, Write(path, []byte(`{"a":1}`), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestWrite_OverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, Write(path, []byte("first"), 0644))
	require.NoError(t, Write(path, []byte("second"), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestWrite_SetsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.key")
	require.NoError(t, Write(path, []byte("s3cr3t"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestReadIfExists_MissingFileReturnsNilNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	data, err := ReadIfExists(path)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestReadIfExists_ReturnsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "present.json")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	data, err := ReadIfExists(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
