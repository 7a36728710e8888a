package audiocap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequency(t *testing.T) {
	for _, tc := range []struct {
		system  SystemType
		dacrate uint32
		want    int
	}{
		{SystemNTSC, 1447, 33620},
		{SystemPAL, 1477, 33597},
		{SystemMPAL, 0, 48628316},
		{SystemType(7), 1447, 33620},
	} {
		assert.Equal(t, tc.want, Frequency(tc.system, tc.dacrate), "system %d dacrate %d", tc.system, tc.dacrate)
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.raw")

	r := New()
	assert.Equal(t, DefaultFrequency, r.Frequency())

	r.SetOutput(path)
	require.NoError(t, r.Open())
	require.NoError(t, r.Write([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}))
	// A trailing partial sample is dropped.
	require.NoError(t, r.Write([]byte{0x11, 0x12, 0x13, 0x14, 0xff}))
	r.SetFrequency(SystemNTSC, 1447)
	require.NoError(t, r.Close())

	assert.Equal(t, int64(12), r.BytesWritten())
	assert.Equal(t, 33620, r.Frequency())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x03, 0x04, 0x01, 0x02,
		0x07, 0x08, 0x05, 0x06,
		0x13, 0x14, 0x11, 0x12,
	}, b)
}

func TestRecorderReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.raw")

	r := New()
	r.SetOutput(path)
	require.NoError(t, r.Open())
	require.NoError(t, r.Write(make([]byte, 16)))
	require.NoError(t, r.Open())
	assert.Equal(t, int64(0), r.BytesWritten())
	require.NoError(t, r.Write(make([]byte, 4)))
	require.NoError(t, r.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, b, 4)
}

func TestRecorderNoOutput(t *testing.T) {
	r := New()
	require.NoError(t, r.Open())
	require.NoError(t, r.Write(make([]byte, 8)))
	require.NoError(t, r.Close())
	assert.Equal(t, int64(0), r.BytesWritten())
}

func TestRecorderBadPath(t *testing.T) {
	r := New()
	r.SetOutput(filepath.Join(t.TempDir(), "missing", "audio.raw"))
	require.Error(t, r.Open())
}
