package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// memoryDatabase implements Database for tests, with the same ordering and
// cursor semantics as the PostgreSQL client. The fail* fields inject
// failures; blockList makes ListPublicPhotos park until released.
type memoryDatabase struct {
	mu       sync.Mutex
	sessions map[string]Session
	users    map[string]User
	photos   map[string]Photo

	failCreatePhoto      error
	failUpdateVisibility error
	failList             error

	blockList chan struct{}
	listCalls int
}

func newMemoryDatabase() *memoryDatabase {
	return &memoryDatabase{
		sessions: make(map[string]Session),
		users:    make(map[string]User),
		photos:   make(map[string]Photo),
	}
}

func (m *memoryDatabase) GetOrCreateSession(ctx context.Context, sessionID, username string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		return sess, nil
	}

	if username == "" {
		return Session{}, fmt.Errorf("%w: username is required", ErrValidation)
	}

	sess := Session{SessionID: uuid.NewString(), Username: username}
	m.sessions[sess.SessionID] = sess

	for _, u := range m.users {
		if u.Username == username {
			return sess, nil
		}
	}
	id := uuid.NewString()
	m.users[id] = User{ID: id, Username: username}

	return sess, nil
}

func (m *memoryDatabase) GetSession(ctx context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	return sess, nil
}

func (m *memoryDatabase) CreatePhoto(ctx context.Context, photo Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreatePhoto != nil {
		return m.failCreatePhoto
	}
	if err := validatePhoto(photo); err != nil {
		return err
	}

	m.photos[photo.ID] = photo

	return nil
}

func (m *memoryDatabase) GetPhoto(ctx context.Context, id string) (Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return Photo{}, fmt.Errorf("%w: photo %s", ErrNotFound, id)
	}

	return p, nil
}

func (m *memoryDatabase) ListPhotosBySession(ctx context.Context, sessionID string) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Photo
	for _, p := range m.photos {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}

	return out, nil
}

func (m *memoryDatabase) ListPhotosByUsername(ctx context.Context, username string) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Photo
	for _, p := range m.photos {
		if p.Username == username {
			out = append(out, p)
		}
	}

	return out, nil
}

func (m *memoryDatabase) ListPublicPhotos(ctx context.Context, cursor *Cursor, pageSize int) ([]Photo, error) {
	m.mu.Lock()
	m.listCalls++
	block := m.blockList
	if m.failList != nil {
		err := m.failList
		m.mu.Unlock()
		return nil, err
	}

	var all []Photo
	for _, p := range m.photos {
		if p.IsPublic {
			all = append(all, p)
		}
	}
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	var out []Photo
	for _, p := range all {
		if cursor != nil {
			after := p.CreatedAt.Before(cursor.CreatedAt) ||
				(p.CreatedAt.Equal(cursor.CreatedAt) && p.ID < cursor.ID)
			if !after {
				continue
			}
		}
		out = append(out, p)
		if len(out) == pageSize {
			break
		}
	}

	return out, nil
}

func (m *memoryDatabase) UpdatePhotoVisibility(ctx context.Context, id string, isPublic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdateVisibility != nil {
		return m.failUpdateVisibility
	}

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("%w: photo %s", ErrNotFound, id)
	}
	p.IsPublic = isPublic
	m.photos[id] = p

	return nil
}

func (m *memoryDatabase) DeletePhoto(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.photos, id)

	return nil
}

func (m *memoryDatabase) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	return out, nil
}

func (m *memoryDatabase) UpdateUserBlacklist(ctx context.Context, id string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	u.IsBlacklist = value
	m.users[id] = u

	return nil
}

// memoryBlobStore implements BlobStore over a map.
type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	failUpload error
	baseURL    string
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: make(map[string][]byte), baseURL: "http://blobs.test"}
}

func (b *memoryBlobStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failUpload != nil {
		return "", b.failUpload
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.objects[key] = data

	return b.baseURL + "/" + key, nil
}

func (b *memoryBlobStore) Delete(ctx context.Context, blobURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, strings.TrimPrefix(blobURL, b.baseURL+"/"))

	return nil
}

func (b *memoryBlobStore) Open(key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", ErrNotFound, key)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memoryBlobStore) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.objects)
}
