package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

type APIServer struct {
	db    Database
	blobs BlobStore
	cfg   *Config
}

func NewAPIServer(db Database, blobs BlobStore, cfg *Config) *APIServer {
	return &APIServer{
		db:    db,
		blobs: blobs,
		cfg:   cfg,
	}
}

type APIFunc func(w http.ResponseWriter, r *http.Request) error

func makeHandler(f APIFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)

		var statusError *StatusError
		if errors.As(err, &statusError) {
			slog.Error("Writing API Status Error to response", "status_error", statusError)

			if statusError.Err != nil {
				w.WriteHeader(statusError.Status)
				writeJSON(w, statusError)
			} else {
				http.Error(w, http.StatusText(statusError.Status), statusError.Status)
			}

			return
		}

		if err != nil {
			slog.Error("Writing an error to response", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}
	}
}

type StatusError struct {
	Err    error `json:"error,omitempty"`
	Status int   `json:"status,omitempty"`
}

func (a *StatusError) Error() string {
	if a.Err != nil {
		return a.Err.Error()
	}

	return ""
}

func (s *APIServer) Routes() *http.ServeMux {
	r := http.NewServeMux()

	r.HandleFunc("/session", makeHandler(s.HandleCreateSession))
	r.HandleFunc("/upload-photo", makeHandler(s.HandleUploadPhoto))
	r.HandleFunc("/photos", makeHandler(s.HandleListPhotos))
	r.HandleFunc("/photos/visibility", makeHandler(s.HandleUpdateVisibility))
	r.HandleFunc("/photos/delete", makeHandler(s.HandleDeletePhoto))
	r.HandleFunc("/feed", makeHandler(s.HandleFeed))
	r.HandleFunc("/pictures/", makeHandler(s.HandleServeBlob))

	r.HandleFunc("/admin/login", makeHandler(s.HandleAdminLogin))
	r.HandleFunc("/admin/users", makeHandler(
		s.adminMiddleware(s.HandleListUsers),
	))
	r.HandleFunc("/admin/users/blacklist", makeHandler(
		s.adminMiddleware(s.HandleUpdateBlacklist),
	))
	r.HandleFunc("/admin/photos", makeHandler(
		s.adminMiddleware(s.HandleAdminListPhotos),
	))
	r.HandleFunc("/admin/photos/delete", makeHandler(
		s.adminMiddleware(s.HandleAdminDeletePhoto),
	))

	return r
}

func (s *APIServer) Run() error {
	srv := http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("Starting the server", "listen_addr", s.cfg.ListenAddr)

	return srv.ListenAndServe()
}

type HandleCreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// HandleCreateSession is get-or-create: a request carrying a known
// session_id gets the stored pair back unchanged, anything else mints one.
func (s *APIServer) HandleCreateSession(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req HandleCreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	sess, err := s.db.GetOrCreateSession(r.Context(), req.SessionID, strings.TrimSpace(req.Username))
	if err != nil {
		return toStatusError(err)
	}

	return writeJSON(w, sess)
}

func (s *APIServer) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	sess, err := s.db.GetSession(r.Context(), r.FormValue("session_id"))
	if err != nil {
		return toStatusError(err)
	}

	formFile, handler, err := r.FormFile("image")
	if err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}
	defer formFile.Close()

	slog.Debug("Received an image",
		"filename", handler.Filename,
		"size", handler.Size,
		"session_id", sess.SessionID,
	)

	data, err := io.ReadAll(formFile)
	if err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	photo, err := uploadPhoto(r.Context(), s.db, s.blobs, sess, data)
	if err != nil {
		return toStatusError(err)
	}

	slog.Debug("Saved a photo", "photo_id", photo.ID, "blob_url", photo.Image)

	return writeJSON(w, photo)
}

type HandleListPhotosResponse struct {
	Photos []Photo `json:"photos"`
}

func (s *APIServer) HandleListPhotos(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	sess, err := s.db.GetSession(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		return toStatusError(err)
	}

	photos, err := s.db.ListPhotosBySession(r.Context(), sess.SessionID)
	if err != nil {
		return toStatusError(err)
	}

	return writeJSON(w, HandleListPhotosResponse{Photos: photos})
}

type HandleUpdateVisibilityRequest struct {
	SessionID string `json:"session_id"`
	ID        string `json:"id"`
	IsPublic  bool   `json:"is_public"`
}

func (s *APIServer) HandleUpdateVisibility(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req HandleUpdateVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	photo, err := s.ownedPhoto(r, req.SessionID, req.ID)
	if err != nil {
		return err
	}

	if err := s.db.UpdatePhotoVisibility(r.Context(), photo.ID, req.IsPublic); err != nil {
		return toStatusError(err)
	}

	photo.IsPublic = req.IsPublic

	return writeJSON(w, photo)
}

type HandleOwnerDeleteRequest struct {
	SessionID string `json:"session_id"`
	ID        string `json:"id"`
}

func (s *APIServer) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req HandleOwnerDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	photo, err := s.ownedPhoto(r, req.SessionID, req.ID)
	if err != nil {
		return err
	}

	if err := removePhoto(r.Context(), s.db, s.blobs, photo.ID); err != nil {
		return toStatusError(err)
	}

	return writeJSON(w, struct{}{})
}

// ownedPhoto loads a photo and checks the caller's session stamped it.
func (s *APIServer) ownedPhoto(r *http.Request, sessionID, id string) (Photo, error) {
	sess, err := s.db.GetSession(r.Context(), sessionID)
	if err != nil {
		return Photo{}, toStatusError(err)
	}

	photo, err := s.db.GetPhoto(r.Context(), id)
	if err != nil {
		return Photo{}, toStatusError(err)
	}

	if photo.SessionID != sess.SessionID {
		return Photo{}, &StatusError{Err: ErrUnauthorized, Status: http.StatusUnauthorized}
	}

	return photo, nil
}

type HandleFeedResponse struct {
	Photos     []Photo `json:"photos"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// HandleFeed serves one page of the public feed, newest first. A short page
// means the feed is exhausted and no next_cursor is handed out.
func (s *APIServer) HandleFeed(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	cursor, err := DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		return toStatusError(err)
	}

	photos, err := s.db.ListPublicPhotos(r.Context(), cursor, FeedPageSize)
	if err != nil {
		return toStatusError(err)
	}

	resp := HandleFeedResponse{Photos: photos, HasMore: len(photos) == FeedPageSize}
	if resp.HasMore {
		last := photos[len(photos)-1]
		resp.NextCursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}

	return writeJSON(w, resp)
}

func (s *APIServer) HandleServeBlob(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	key := strings.TrimPrefix(r.URL.Path, "/")

	f, err := s.blobs.Open(key)
	if err != nil {
		return toStatusError(err)
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	_, err = io.Copy(w, f)

	return err
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	return json.NewEncoder(w).Encode(v)
}
