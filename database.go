package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

//go:embed schema.sql
var schema string

// FeedPageSize is how many public photos a single feed page carries.
const FeedPageSize = 10

// Database is the metadata store client. The production implementation sits
// on PostgreSQL; tests substitute an in-memory one.
type Database interface {
	GetOrCreateSession(ctx context.Context, sessionID, username string) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)

	CreatePhoto(ctx context.Context, photo Photo) error
	GetPhoto(ctx context.Context, id string) (Photo, error)
	ListPhotosBySession(ctx context.Context, sessionID string) ([]Photo, error)
	ListPhotosByUsername(ctx context.Context, username string) ([]Photo, error)
	ListPublicPhotos(ctx context.Context, cursor *Cursor, pageSize int) ([]Photo, error)
	UpdatePhotoVisibility(ctx context.Context, id string, isPublic bool) error
	DeletePhoto(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]User, error)
	UpdateUserBlacklist(ctx context.Context, id string, value bool) error
}

// Cursor points at the last row of the previous feed page. Pages are keyed by
// (created_at, id) so the ordering is total and start-after is exact.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
	}

	return &c, nil
}

type PostgreSQLDatabase struct {
	db *sql.DB
}

func NewPostgreSQLDatabase() (*PostgreSQLDatabase, error) {
	var (
		user     = os.Getenv("POSTGRES_USER")
		password = os.Getenv("POSTGRES_PASSWORD")
		port     = os.Getenv("DB_PORT")
		connStr  = fmt.Sprintf("user=%s password=%s port=%s dbname=db sslmode=disable", user, password, port)
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	pg := &PostgreSQLDatabase{db: db}
	if err := pg.db.Ping(); err != nil {
		return nil, err
	}

	slog.Debug("Database pinged")

	if _, err := pg.db.ExecContext(context.Background(), schema); err != nil {
		slog.Debug("Failed to create database schema", "error", err)
	} else {
		slog.Info("Successfully created the database schema")
	}

	return pg, nil
}

func (pq *PostgreSQLDatabase) GetOrCreateSession(ctx context.Context, sessionID, username string) (Session, error) {
	if sessionID != "" {
		sess, err := pq.GetSession(ctx, sessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Session{}, err
		}
	}

	if username == "" {
		return Session{}, fmt.Errorf("%w: username is required", ErrValidation)
	}

	sess := Session{SessionID: uuid.NewString(), Username: username}

	const createSession = `
	INSERT INTO sessions (session_id, username)
	VALUES($1, $2)
	`

	if _, err := pq.db.ExecContext(ctx, createSession, sess.SessionID, sess.Username); err != nil {
		return Session{}, err
	}

	// Provision the users row the admin console lists. Duplicate usernames
	// collapse onto the existing row.
	const createUser = `
	INSERT INTO users (id, username, is_blacklist)
	VALUES($1, $2, FALSE)
	ON CONFLICT (username) DO NOTHING
	`

	if _, err := pq.db.ExecContext(ctx, createUser, uuid.NewString(), sess.Username); err != nil {
		return Session{}, err
	}

	return sess, nil
}

func (pq *PostgreSQLDatabase) GetSession(ctx context.Context, sessionID string) (Session, error) {
	const getSession = `
	SELECT
		session_id,
    	username
	FROM sessions
	WHERE session_id = $1
	`

	row := pq.db.QueryRowContext(ctx, getSession, sessionID)
	var s Session
	if err := row.Scan(&s.SessionID, &s.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return Session{}, err
	}

	return s, nil
}

func (pq *PostgreSQLDatabase) CreatePhoto(ctx context.Context, photo Photo) error {
	if err := validatePhoto(photo); err != nil {
		return err
	}

	const createPhoto = `
	INSERT INTO images(id, session_id, username, image, is_public, created_at)
	VALUES($1, $2, $3, $4, $5, $6)
	`

	_, err := pq.db.ExecContext(ctx, createPhoto,
		photo.ID, photo.SessionID, photo.Username, photo.Image, photo.IsPublic, photo.CreatedAt)

	return err
}

func (pq *PostgreSQLDatabase) GetPhoto(ctx context.Context, id string) (Photo, error) {
	const getPhoto = `
	SELECT
		id,
    	session_id,
    	username,
    	image,
    	is_public,
    	created_at
	FROM images
	WHERE id = $1
	`

	row := pq.db.QueryRowContext(ctx, getPhoto, id)

	return scanPhotoRow(row, id)
}

func (pq *PostgreSQLDatabase) ListPhotosBySession(ctx context.Context, sessionID string) ([]Photo, error) {
	const listBySession = `
	SELECT
		id,
    	session_id,
    	username,
    	image,
    	is_public,
    	created_at
	FROM images
	WHERE session_id = $1
	`

	return pq.queryPhotos(ctx, listBySession, sessionID)
}

// ListPhotosByUsername matches by the display-name string, the way the admin
// console looks photos up. There is no foreign key to users.id.
func (pq *PostgreSQLDatabase) ListPhotosByUsername(ctx context.Context, username string) ([]Photo, error) {
	const listByUsername = `
	SELECT
		id,
    	session_id,
    	username,
    	image,
    	is_public,
    	created_at
	FROM images
	WHERE username = $1
	`

	return pq.queryPhotos(ctx, listByUsername, username)
}

func (pq *PostgreSQLDatabase) ListPublicPhotos(ctx context.Context, cursor *Cursor, pageSize int) ([]Photo, error) {
	if pageSize <= 0 {
		pageSize = FeedPageSize
	}

	const firstPage = `
	SELECT
		id,
    	session_id,
    	username,
    	image,
    	is_public,
    	created_at
	FROM images
	WHERE is_public = TRUE
	ORDER BY created_at DESC, id DESC
	LIMIT $1
	`

	const afterCursor = `
	SELECT
		id,
    	session_id,
    	username,
    	image,
    	is_public,
    	created_at
	FROM images
	WHERE is_public = TRUE
	  AND (created_at, id) < ($1, $2)
	ORDER BY created_at DESC, id DESC
	LIMIT $3
	`

	if cursor == nil {
		return pq.queryPhotos(ctx, firstPage, pageSize)
	}

	return pq.queryPhotos(ctx, afterCursor, cursor.CreatedAt, cursor.ID, pageSize)
}

func (pq *PostgreSQLDatabase) UpdatePhotoVisibility(ctx context.Context, id string, isPublic bool) error {
	const updateVisibility = `
	UPDATE images
	SET is_public = $2
	WHERE id = $1
	`

	res, err := pq.db.ExecContext(ctx, updateVisibility, id, isPublic)
	if err != nil {
		return err
	}

	return requireRow(res, id)
}

func (pq *PostgreSQLDatabase) DeletePhoto(ctx context.Context, id string) error {
	const deletePhoto = `
	DELETE from images
	WHERE id = $1
	`

	_, err := pq.db.ExecContext(ctx, deletePhoto, id)

	return err
}

func (pq *PostgreSQLDatabase) ListUsers(ctx context.Context) ([]User, error) {
	const listUsers = `
	SELECT
		id,
    	username,
    	is_blacklist
	FROM users
	`

	rows, err := pq.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User

	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsBlacklist); err != nil {
			return nil, err
		}

		items = append(items, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (pq *PostgreSQLDatabase) UpdateUserBlacklist(ctx context.Context, id string, value bool) error {
	const updateBlacklist = `
	UPDATE users
	SET is_blacklist = $2
	WHERE id = $1
	`

	res, err := pq.db.ExecContext(ctx, updateBlacklist, id, value)
	if err != nil {
		return err
	}

	return requireRow(res, id)
}

func (pq *PostgreSQLDatabase) queryPhotos(ctx context.Context, query string, args ...any) ([]Photo, error) {
	rows, err := pq.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Photo

	for rows.Next() {
		var p Photo
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&p.Username,
			&p.Image,
			&p.IsPublic,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}

		if err := validatePhoto(p); err != nil {
			return nil, err
		}

		items = append(items, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanPhotoRow(row *sql.Row, id string) (Photo, error) {
	var p Photo
	err := row.Scan(
		&p.ID,
		&p.SessionID,
		&p.Username,
		&p.Image,
		&p.IsPublic,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Photo{}, fmt.Errorf("%w: photo %s", ErrNotFound, id)
	}
	if err != nil {
		return Photo{}, err
	}

	if err := validatePhoto(p); err != nil {
		return Photo{}, err
	}

	return p, nil
}

// validatePhoto rejects malformed documents at the store boundary instead of
// letting undefined fields leak into the views.
func validatePhoto(p Photo) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: photo id is empty", ErrValidation)
	case p.SessionID == "":
		return fmt.Errorf("%w: photo %s has no session_id", ErrValidation, p.ID)
	case p.Username == "":
		return fmt.Errorf("%w: photo %s has no username", ErrValidation, p.ID)
	case p.Image == "":
		return fmt.Errorf("%w: photo %s has no image url", ErrValidation, p.ID)
	case p.CreatedAt.IsZero():
		return fmt.Errorf("%w: photo %s has no created_at", ErrValidation, p.ID)
	}

	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: record %s", ErrNotFound, id)
	}

	return nil
}
