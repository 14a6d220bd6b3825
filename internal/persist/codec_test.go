package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name  string
	Count int
	Tags  []string
}

var testCodecs = map[string]Codec{
	"json":    NewJSONCodec(),
	"gob":     NewGobCodec(),
	"lz4-gob": NewLZ4GobCodec(),
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for name, codec := range testCodecs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			in := testPayload{Name: "alpha", Count: 3, Tags: []string{"a", "b"}}

			require.NoError(t, Save(dir, "payload", codec, &in))
			require.True(t, Exists(dir, "payload", codec))

			var out testPayload

			require.NoError(t, Load(dir, "payload", codec, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	var out testPayload

	err := Load(t.TempDir(), "absent", NewJSONCodec(), &out)

	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestSave_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/deeper"

	require.NoError(t, Save(dir, "payload", NewGobCodec(), &testPayload{Name: "x"}))
	assert.True(t, Exists(dir, "payload", NewGobCodec()))
}

func TestModTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewJSONCodec()

	_, err := ModTime(dir, "payload", codec)
	require.Error(t, err)
	assert.True(t, IsNotExist(err))

	require.NoError(t, Save(dir, "payload", codec, &testPayload{}))

	mtime, err := ModTime(dir, "payload", codec)
	require.NoError(t, err)
	assert.False(t, mtime.IsZero())
}
