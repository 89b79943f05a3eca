// Package storage puts uploaded images somewhere public and returns their URL.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// ImageStore stores an object under key and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// imageTypes maps accepted content types to the stored extension.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is a file received from a client.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// CheckImage validates an upload against the accepted image types and the
// size cap.  It returns the extension to store the file with.
func CheckImage(u Upload, maxBytes int64) (string, error) {
	if maxBytes > 0 && u.Size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, u.Size, maxBytes)
	}
	ext, ok := imageTypes[strings.ToLower(strings.TrimSpace(u.ContentType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, u.ContentType)
	}
	return ext, nil
}

// SniffContentType reads the first 512 bytes of r to detect its type and
// returns a reader that still yields the full content.
func SniffContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// New picks the store named by cfg.Driver.
func New(cfg config.StorageConfig, publicBaseURL string, logger *slog.Logger) (ImageStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "s3", "minio":
		return NewS3Store(cfg)
	case "", "local":
		logger.Info("storing uploads on local disk", "dir", cfg.LocalDir)
		return NewLocalStore(cfg.LocalDir, strings.TrimRight(publicBaseURL, "/")+"/uploads"), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
