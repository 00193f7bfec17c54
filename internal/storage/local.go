// Package storage keeps uploaded images on local disk under uuid names.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/domain"
)

// ErrUnsupportedType is returned for uploads that are not a recognised image.
var ErrUnsupportedType = errors.New("unsupported image type")

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var _ domain.ImageStorage = (*Local)(nil)

// Local writes files to dir/<category>/<uuid>.<ext> and serves them under baseURL.
type Local struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewLocal(dir, baseURL string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Dir is the root directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

// SaveImage sniffs the content type from the first bytes, rejects anything
// that is not an image, and stores the rest under a fresh uuid.
func (l *Local) SaveImage(ctx context.Context, category, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	category = filepath.Base(filepath.Clean("/" + category))
	if category == "/" || category == "." {
		return "", errors.New("category is required")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", errors.New("empty upload")
		}
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	ext, ok := allowedTypes[http.DetectContentType(head)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}

	dir := filepath.Join(l.dir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create category dir: %w", err)
	}

	name := uuid.New().String() + "." + ext
	dst := filepath.Join(dir, name)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if l.maxBytes > 0 {
		src = io.LimitReader(src, l.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && l.maxBytes > 0 && written > l.maxBytes {
		err = fmt.Errorf("upload exceeds %d bytes", l.maxBytes)
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return l.baseURL + "/" + path.Join(category, name), nil
}
