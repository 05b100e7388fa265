package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "covers")
	s, err := NewStorage(dir)
	require.NoError(t, err)
	require.NotNil(t, s)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewStorage("")
	assert.Error(t, err)
}

func TestStorage_Lifecycle(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Exists("book-1"))
	_, err = s.Get("book-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("book-1", []byte("first")))
	require.NoError(t, s.Save("book-1", []byte("second")))
	assert.True(t, s.Exists("book-1"))

	data, err := s.Get("book-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	require.NoError(t, s.Delete("book-1"))
	require.NoError(t, s.Delete("book-1"))
	assert.False(t, s.Exists("book-1"))

	assert.Error(t, s.Save("", []byte("x")))
	assert.Error(t, s.Save("book-2", nil))
}

func TestHash(t *testing.T) {
	h := Hash([]byte("cover"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash([]byte("cover")))
	assert.NotEqual(t, h, Hash([]byte("other")))
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(testPNG(t, 300, 450))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	_, err = ComputeBlurHash([]byte("not an image"))
	assert.Error(t, err)
}

func TestResizeForBlurHash(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 32, 48))
	assert.Same(t, small, resizeForBlurHash(small))

	wide := resizeForBlurHash(image.NewRGBA(image.Rect(0, 0, 1000, 10)))
	assert.Equal(t, 64, wide.Bounds().Dx())
	assert.Equal(t, 1, wide.Bounds().Dy())
}

func TestProcessor_Process(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(s, nil)

	data := testPNG(t, 120, 180)
	info, err := p.Process("book-1", data)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, Hash(data), info.Hash)
	assert.NotEmpty(t, info.BlurHash)
	assert.True(t, s.Exists("book-1"))
	assert.Equal(t, "image/png", ContentType(info.Format))
}

func TestProcessor_RejectsNonImages(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(s, nil)

	_, err = p.Process("book-1", []byte("<html>nope</html>"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, s.Exists("book-1"))

	_, err = p.Process("book-1", make([]byte, MaxCoverBytes+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}
