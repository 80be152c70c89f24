package processor

import (
	"context"
	"errors"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-compressor/internal/retry"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 1}
	return opts
}

func TestProcessor_CompressLargePhoto(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "IMG_0001.jpg", noiseImage(4000, 3000), 90)
	original, err := os.ReadFile(src)
	require.NoError(t, err)

	p := New(testOptions(), zerolog.Nop())
	res, err := p.Compress(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "IMG_0001_compressed.jpg"), res.Output)
	require.Equal(t, 1, res.Attempts)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", res.JobID.String())

	f, err := os.Open(res.Output)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.LessOrEqual(t, cfg.Width, 1920)
	require.LessOrEqual(t, cfg.Height, 1080)
	require.Equal(t, 1440, cfg.Width)
	require.Equal(t, 1080, cfg.Height)

	info, err := os.Stat(res.Output)
	require.NoError(t, err)
	require.Equal(t, info.Size(), res.Bytes)
	if res.Bytes > 100*1024 {
		require.Equal(t, 30, res.Quality)
	}

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	require.Equal(t, original, after, "source must stay untouched")

	require.NoFileExists(t, ScratchPath(src))
	require.NoFileExists(t, res.Output+partialSuffix)
}

func TestProcessor_SmallPhotoKeepsHighQuality(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "small.JPG", gradientImage(320, 240), 100)

	res, err := New(testOptions(), zerolog.Nop()).Compress(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 95, res.Quality)
	require.Equal(t, 320, res.Width)
	require.Equal(t, 240, res.Height)
	require.Equal(t, filepath.Join(dir, "small_compressed.JPG"), res.Output)
	require.FileExists(t, res.Output)
}

func TestProcessor_NonAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "a.jpg", gradientImage(64, 64), 90)

	opts := testOptions()
	opts.AtomicWrite = false
	opts.Suffix = "_web"

	res, err := New(opts, zerolog.Nop()).Compress(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a_web.jpg"), res.Output)
	require.FileExists(t, res.Output)
}

func TestProcessor_UndecodableIsTerminal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(src, []byte("definitely not a jpeg"), 0o644))

	res, err := New(testOptions(), zerolog.Nop()).Compress(context.Background(), src)

	require.ErrorIs(t, err, ErrDecode)
	require.NotErrorIs(t, err, retry.ErrExhausted)
	require.Equal(t, 1, res.Attempts)
	require.NoFileExists(t, ArtifactPath(src, DefaultSuffix))
}

func TestProcessor_MissingFileRetriesUntilCeiling(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gone.jpg")

	res, err := New(testOptions(), zerolog.Nop()).Compress(context.Background(), src)

	require.ErrorIs(t, err, retry.ErrExhausted)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Equal(t, 3, res.Attempts)
}

func TestProcessor_PermissionDeniedRetriesUntilCeiling(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	dir := t.TempDir()
	src := writeJPEG(t, dir, "locked.jpg", gradientImage(32, 32), 90)
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	res, err := New(testOptions(), zerolog.Nop()).Compress(context.Background(), src)

	require.ErrorIs(t, err, retry.ErrExhausted)
	require.ErrorIs(t, err, fs.ErrPermission)
	require.Equal(t, 3, res.Attempts)
	require.NoFileExists(t, ScratchPath(src))
}

func TestProcessor_UnwritableArtifactRetriesUntilCeiling(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "blocked.jpg", gradientImage(32, 32), 90)

	// A directory on the partial artifact name fails every create, regardless of euid.
	partial := ArtifactPath(src, DefaultSuffix) + partialSuffix
	require.NoError(t, os.Mkdir(partial, 0o755))

	res, err := New(testOptions(), zerolog.Nop()).Compress(context.Background(), src)

	require.ErrorIs(t, err, retry.ErrExhausted)
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
	require.Equal(t, partial, pathErr.Path)
	require.Equal(t, 3, res.Attempts)
	require.NoFileExists(t, ArtifactPath(src, DefaultSuffix))
	require.NoFileExists(t, ScratchPath(src))
	require.DirExists(t, partial)
}

func TestProcessor_CanceledContextStopsRetrying(t *testing.T) {
	opts := testOptions()
	opts.Retry.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := New(opts, zerolog.Nop()).Compress(ctx, filepath.Join(t.TempDir(), "gone.jpg"))

	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestArtifactPath(t *testing.T) {
	tests := map[string]string{
		"/photos/IMG_1.jpg":       "/photos/IMG_1_compressed.jpg",
		"/photos/IMG_2.JPG":       "/photos/IMG_2_compressed.JPG",
		"/a.b/c.d/photo.jpg":      "/a.b/c.d/photo_compressed.jpg",
		"/photos/archive.tar.jpg": "/photos/archive.tar_compressed.jpg",
	}

	for in, want := range tests {
		require.Equal(t, want, ArtifactPath(in, DefaultSuffix), in)
	}

	require.Equal(t, "/p/x.jpg.temp.jpg", ScratchPath("/p/x.jpg"))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"permission", fs.ErrPermission, true},
		{"path error", &fs.PathError{Op: "open", Path: "/x", Err: syscall.EIO}, true},
		{"link error", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EBUSY}, true},
		{"errno", syscall.EAGAIN, true},
		{"decode", errors.Join(ErrDecode, errors.New("jpeg: missing SOI marker")), false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("jpeg: image is too large to encode"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
