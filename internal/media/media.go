// Package media stores user-uploaded images (profile pictures) on the local
// filesystem. Paths handed out are relative to the media root and are served
// under /media/ by the HTTP server.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"
)

const (
	// MaxUploadSize caps a single image upload.
	MaxUploadSize = 5 << 20

	// Profile pictures are scaled down to fit within this box.
	profileMaxWidth  = 512
	profileMaxHeight = 512

	profileDir = "profile_pictures"
)

var (
	ErrTooLarge        = fmt.Errorf("image must be at most %d MiB", MaxUploadSize>>20)
	ErrUnsupportedType = errors.New("only JPG, JPEG, PNG, GIF and BMP images are supported")
	ErrInvalidPath     = errors.New("media: path escapes the media root")
)

// Formats imaging can decode and re-encode. The extension and the sniffed
// content must both be on the list.
var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
}

// Store is a directory on disk holding uploaded media.
type Store struct {
	root string
}

// NewStore creates the media root (and its subdirectories) if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, profileDir), 0o755); err != nil {
		return nil, fmt.Errorf("media: creating %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root is the directory the store writes to.
func (s *Store) Root() string {
	return s.root
}

// SaveProfilePicture validates the upload, scales it to fit 512x512 and
// writes it under profile_pictures/. It returns the path relative to the
// media root, always with forward slashes.
func (s *Store) SaveProfilePicture(userID, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedExt[ext]
	if !ok {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("media: reading upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", ErrTooLarge
	}

	// The extension is the client's claim; the bytes are the truth.
	if !mimetype.Detect(data).Is(want) {
		return "", ErrUnsupportedType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", ErrUnsupportedType
	}
	img = imaging.Fit(img, profileMaxWidth, profileMaxHeight, imaging.Lanczos)

	rel := path.Join(profileDir, userID+"_"+xid.New().String()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := imaging.Save(img, full, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("media: saving %s: %w", rel, err)
	}
	return rel, nil
}

// Remove deletes a file previously returned by the store. Removing a file
// that's already gone is not an error.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media: removing %s: %w", rel, err)
	}
	return nil
}

// resolve maps a relative media path to a file inside the root.
func (s *Store) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
