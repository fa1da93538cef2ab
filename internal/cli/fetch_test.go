package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchText_CachesDocument(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("Call me Ishmael."))
	}))
	defer srv.Close()

	dir := t.TempDir()
	url := srv.URL + "/moby.txt"

	for i := 0; i < 2; i++ {
		out, _, err := execute(t, dir, "", "fetch", "text", url)
		require.NoError(t, err)
		assert.Equal(t, "Call me Ishmael.\n", out)
	}
	assert.Equal(t, int32(1), hits.Load())

	out, _, err := execute(t, dir, "", "get", "texts", url)
	require.NoError(t, err)
	assert.Equal(t, "Call me Ishmael.\n", out)
}

func TestFetchText_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, errOut, err := execute(t, t.TempDir(), "", "fetch", "text", srv.URL+"/missing.txt")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "Error [FETCH_FAILED]")
}

func TestFetchAudio_WritesFileAndCaches(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x04, 0x00}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/audio/B002C003S004.mp3", r.URL.Path)
		w.Write(audio)
	}))
	defer srv.Close()
	t.Setenv("PERMSTORE_AUDIO_URL", srv.URL+"/audio/{id}.mp3")

	dir := t.TempDir()
	output := filepath.Join(t.TempDir(), "clip.mp3")

	for i := 0; i < 2; i++ {
		out, _, err := execute(t, dir, "", "fetch", "audio", "B002C003S004", "-o", output)
		require.NoError(t, err)
		assert.Contains(t, out, "B002C003S004: 5 bytes written to")
	}
	assert.Equal(t, int32(1), hits.Load())

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, audio, written)

	out, _, err := execute(t, dir, "", "get", "sounds", "B002C003S004")
	require.NoError(t, err)
	assert.Equal(t, "SUQzBAA=\n", out)
}

func TestFetchAudio_RequiresAudioURL(t *testing.T) {
	_, errOut, err := execute(t, t.TempDir(), "", "fetch", "audio", "B001C000S000")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "audio_url is not configured")
}

func TestFetchAudio_InvalidSentenceID(t *testing.T) {
	_, errOut, err := execute(t, t.TempDir(), "", "fetch", "audio", "chapter-one")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "Error [INVALID_ARGS]")
}
