package main

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// uploadPhoto runs the whole upload sequence: compress, store the blob,
// create the metadata record. The record is only written once the blob
// upload has succeeded; if the record write fails the just-uploaded blob is
// deleted so no orphan is left behind.
func uploadPhoto(ctx context.Context, db Database, blobs BlobStore, sess Session, data []byte) (Photo, error) {
	compressed, err := compressImage(data, MaxImageBytes, MaxImageDimension)
	if err != nil {
		return Photo{}, err
	}

	photo := Photo{
		ID:        uuid.NewString(),
		SessionID: sess.SessionID,
		Username:  sess.Username,
		IsPublic:  false,
		CreatedAt: time.Now().UTC(),
	}

	blobURL, err := blobs.Upload(ctx, BlobKey(photo.ID, photo.CreatedAt), bytes.NewReader(compressed))
	if err != nil {
		return Photo{}, err
	}
	photo.Image = blobURL

	if err := db.CreatePhoto(ctx, photo); err != nil {
		if delErr := blobs.Delete(ctx, blobURL); delErr != nil {
			slog.Error("Orphaned blob after metadata failure", "blob_url", blobURL, "error", delErr)
		}

		return Photo{}, err
	}

	return photo, nil
}

// removePhoto deletes the metadata record and its blob as one logical
// operation. The record goes first; a blob failure other than not-found is
// surfaced so the orphan is visible rather than silent.
func removePhoto(ctx context.Context, db Database, blobs BlobStore, id string) error {
	photo, err := db.GetPhoto(ctx, id)
	if err != nil {
		return err
	}

	if err := db.DeletePhoto(ctx, id); err != nil {
		return err
	}

	return blobs.Delete(ctx, photo.Image)
}

// Gallery is the owner's view over their own uploads. Every mutation goes
// remote first; the in-memory mirror changes only after the store call
// succeeds, so a failure leaves the prior state intact.
type Gallery struct {
	db    Database
	blobs BlobStore
	sess  Session

	mu     sync.Mutex
	photos []Photo
}

func NewGallery(db Database, blobs BlobStore, sess Session) *Gallery {
	return &Gallery{db: db, blobs: blobs, sess: sess}
}

func (g *Gallery) Refresh(ctx context.Context) error {
	photos, err := g.db.ListPhotosBySession(ctx, g.sess.SessionID)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.photos = photos
	g.mu.Unlock()

	return nil
}

func (g *Gallery) Upload(ctx context.Context, data []byte) (Photo, error) {
	photo, err := uploadPhoto(ctx, g.db, g.blobs, g.sess, data)
	if err != nil {
		return Photo{}, err
	}

	g.mu.Lock()
	g.photos = append(g.photos, photo)
	g.mu.Unlock()

	return photo, nil
}

func (g *Gallery) ToggleVisibility(ctx context.Context, id string) error {
	g.mu.Lock()
	idx := -1
	for i := range g.photos {
		if g.photos[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return ErrNotFound
	}
	next := !g.photos[idx].IsPublic
	g.mu.Unlock()

	if err := g.db.UpdatePhotoVisibility(ctx, id, next); err != nil {
		return err
	}

	g.mu.Lock()
	for i := range g.photos {
		if g.photos[i].ID == id {
			g.photos[i].IsPublic = next
			break
		}
	}
	g.mu.Unlock()

	return nil
}

func (g *Gallery) Delete(ctx context.Context, id string) error {
	if err := removePhoto(ctx, g.db, g.blobs, id); err != nil {
		return err
	}

	g.mu.Lock()
	kept := g.photos[:0]
	for _, p := range g.photos {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	g.photos = kept
	g.mu.Unlock()

	return nil
}

func (g *Gallery) Photos() []Photo {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Photo, len(g.photos))
	copy(out, g.photos)

	return out
}
