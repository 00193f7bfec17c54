package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/uploads/", 0)
	require.NoError(t, err)

	url, err := store.SaveImage(context.Background(), "avatars", "me.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/avatars/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	saved, err := os.ReadFile(filepath.Join(dir, "avatars", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, saved)
}

func TestSaveImageRejectsNonImage(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/uploads", 0)
	require.NoError(t, err)

	_, err = store.SaveImage(context.Background(), "rooms", "notes.txt", strings.NewReader("hello world"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.SaveImage(context.Background(), "rooms", "empty.png", strings.NewReader(""))
	assert.Error(t, err)
}

func TestSaveImageTooLarge(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/uploads", 20)
	require.NoError(t, err)

	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	_, err = store.SaveImage(context.Background(), "rooms", "big.png", bytes.NewReader(body))
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "rooms"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveImageSanitisesCategory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/uploads", 0)
	require.NoError(t, err)

	url, err := store.SaveImage(context.Background(), "../../etc", "x.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/etc/"), url)
	_, err = os.Stat(filepath.Join(dir, "etc"))
	assert.NoError(t, err)
}
