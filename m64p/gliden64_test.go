package m64p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIni = "[General]\r\n" +
	"video\\windowedWidth=320\r\n" +
	"[User]\r\n" +
	"version=29\r\n" +
	"video\\windowedWidth=320\r\n" +
	"video\\windowedHeight=240\r\n" +
	"video\\multisampling=0\r\n" +
	"frameBufferEmulation\\nativeResFactor=0\r\n" +
	"texture\\anisotropy=0\r\n" +
	"texture\\maxAnisotropy=0\r\n" +
	"[Other]\r\n" +
	"texture\\anisotropy=1\r\n"

func TestPatchGLideN64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GLideN64.ini")
	require.NoError(t, os.WriteFile(path, []byte(testIni), 0o644))

	require.NoError(t, PatchGLideN64(path, VideoSettings{Width: 1280, Height: 960, MSAA: 4, Aniso: 16}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[General]\n"+
		"video\\windowedWidth=320\n"+
		"[User]\n"+
		"version=29\n"+
		"video\\windowedWidth=1280\n"+
		"video\\windowedHeight=960\n"+
		"video\\multisampling=4\n"+
		"frameBufferEmulation\\nativeResFactor=4\n"+
		"texture\\anisotropy=16\n"+
		"texture\\maxAnisotropy=16\n"+
		"[Other]\n"+
		"texture\\anisotropy=1\n", string(b))
}

func TestPatchGLideN64ResFactor(t *testing.T) {
	for _, tc := range []struct {
		width  int
		factor string
	}{
		{0, "1"},
		{320, "1"},
		{639, "1"},
		{640, "2"},
		{1920, "6"},
	} {
		got := patchGLideN64([]string{"[User]", "frameBufferEmulation\\nativeResFactor=0"}, VideoSettings{Width: tc.width})
		assert.Equal(t, "frameBufferEmulation\\nativeResFactor="+tc.factor, got[1], "width %d", tc.width)
	}
}

func TestPatchGLideN64Missing(t *testing.T) {
	err := PatchGLideN64(filepath.Join(t.TempDir(), "GLideN64.ini"), VideoSettings{})
	require.ErrorIs(t, err, os.ErrNotExist)
}
