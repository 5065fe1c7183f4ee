package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// BlobKeyPrefix is the fixed prefix every stored object key lives under,
// mirroring the bucket layout of the hosted store this replaces.
const BlobKeyPrefix = "pictures"

// BlobStore holds the image binaries. Upload returns a stable, publicly
// dereferenceable URL for the stored object; Delete by that URL is
// idempotent, a missing object counts as deleted.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, blobURL string) error
	Open(key string) (io.ReadCloser, error)
}

// BlobKey builds a collision-safe object key. A bare second-resolution
// timestamp can collide under rapid uploads, so the photo id disambiguates.
func BlobKey(photoID string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s.jpg", BlobKeyPrefix, now.UnixNano(), photoID)
}

// DiskBlobStore keeps blobs on the local filesystem and serves them back
// over HTTP under baseURL.
type DiskBlobStore struct {
	root    string
	baseURL string
}

func NewDiskBlobStore(root, baseURL string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(filepath.Join(root, BlobKeyPrefix), 0o770); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}

	return &DiskBlobStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *DiskBlobStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p, err := s.keyPath(key)
	if err != nil {
		return "", err
	}

	f, err := createFile(p)
	if err != nil {
		return "", fmt.Errorf("blobstore: create %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("blobstore: write %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("blobstore: close %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *DiskBlobStore) Delete(ctx context.Context, blobURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := s.KeyFromURL(blobURL)
	if err != nil {
		return err
	}

	p, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}

	return nil
}

// KeyFromURL recovers the object key from a retrieval URL handed out by
// Upload.
func (s *DiskBlobStore) KeyFromURL(blobURL string) (string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad blob url %q", ErrValidation, blobURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(key, BlobKeyPrefix+"/") {
		return "", fmt.Errorf("%w: blob url %q outside %s/", ErrValidation, blobURL, BlobKeyPrefix)
	}

	return key, nil
}

// Open returns the stored blob for serving. Used by the /pictures/ route.
func (s *DiskBlobStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: blob %s", ErrNotFound, key)
	}

	return f, err
}

func (s *DiskBlobStore) keyPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if !strings.HasPrefix(clean, "/"+BlobKeyPrefix+"/") {
		return "", fmt.Errorf("%w: bad blob key %q", ErrValidation, key)
	}

	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func createFile(p string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o770); err != nil {
		return nil, err
	}

	return os.Create(p)
}
