package uploads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPath(t *testing.T) {
	now := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	p, err := NewPath("logos/abc", "image/PNG", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "logos/abc/2026/03/"))
	assert.True(t, strings.HasSuffix(p, ".png"))

	_, err = NewPath("x", "application/pdf", now)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPutImage_Memory(t *testing.T) {
	mem := storage.NewMemory(storage.MemoryConfig{BaseURL: "https://cdn.example.org"})
	ctx := context.Background()

	u, err := PutImage(ctx, mem, "photos/1", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://cdn.example.org/photos/1/"))

	p := strings.TrimPrefix(u, "https://cdn.example.org/")
	b, err := mem.GetBytes(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(b))

	_, err = PutImage(ctx, mem, "photos/1", "text/html", strings.NewReader("<p>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPutImage_NoBaseURLReturnsPath(t *testing.T) {
	mem := storage.NewMemory(storage.MemoryConfig{})
	u, err := PutImage(context.Background(), mem, "logos/2", "image/gif", strings.NewReader("gif"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "logos/2/"))
}

func TestOpen_Local(t *testing.T) {
	root := t.TempDir()
	s, err := Open(context.Background(), Config{Type: "local", LocalPath: root, LocalURL: "/uploads"})
	require.NoError(t, err)
	assert.Equal(t, "local", s.Backend())

	u, err := PutImage(context.Background(), s, "logos/3", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "/uploads/logos/3/"))

	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(u, "/uploads/"))))
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}
