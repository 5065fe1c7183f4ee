package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// Credentials is the submitted admin pair. The configured pair comes from
// ADMIN_CREDENTIALS; neither leaves the process.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// credentialsMatch is the whole login policy: one fixed operator-configured
// pair, compared in-process. The configured password may be a bcrypt hash
// (preferred) or plaintext. This is a UI gate, not an access-control system.
func credentialsMatch(submitted, configured Credentials) bool {
	if subtle.ConstantTimeCompare([]byte(submitted.Username), []byte(configured.Username)) != 1 {
		return false
	}

	if strings.HasPrefix(configured.Password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured.Password), []byte(submitted.Password)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(submitted.Password), []byte(configured.Password)) == 1
}

// loginFresh reports whether a login stamped at issuedAt still falls inside
// the freshness window at now.
func loginFresh(now, issuedAt time.Time) bool {
	if issuedAt.IsZero() || issuedAt.After(now) {
		return false
	}

	return now.Sub(issuedAt) < AdminLoginWindow
}

// filterUsers is the console's search box: case-insensitive substring match
// on the username, recomputed per keystroke.
func filterUsers(users []User, term string) []User {
	if term == "" {
		return users
	}

	needle := strings.ToLower(term)
	var out []User
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), needle) {
			out = append(out, u)
		}
	}

	return out
}

type HandleAdminLoginResponse struct {
	Token string `json:"token"`
}

func (s *APIServer) HandleAdminLogin(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var submitted Credentials
	if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	configured := Credentials{Username: s.cfg.AdminUsername, Password: s.cfg.AdminPassword}
	if !credentialsMatch(submitted, configured) {
		slog.Info("Rejected admin login", "username", submitted.Username)
		return &StatusError{Err: ErrUnauthorized, Status: http.StatusUnauthorized}
	}

	token, err := NewAdminToken(submitted.Username, time.Now())
	if err != nil {
		return &StatusError{Err: err, Status: http.StatusInternalServerError}
	}

	slog.Info("Admin logged in", "username", submitted.Username)

	return writeJSON(w, HandleAdminLoginResponse{Token: token.Access})
}

type HandleListUsersResponse struct {
	Users []User `json:"users"`
}

func (s *APIServer) HandleListUsers(admin string, w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	users, err := s.db.ListUsers(r.Context())
	if err != nil {
		return toStatusError(err)
	}

	users = filterUsers(users, r.URL.Query().Get("search"))

	return writeJSON(w, HandleListUsersResponse{Users: users})
}

type HandleBlacklistRequest struct {
	ID          string `json:"id"`
	IsBlacklist bool   `json:"is_blacklist"`
}

func (s *APIServer) HandleUpdateBlacklist(admin string, w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req HandleBlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	if err := s.db.UpdateUserBlacklist(r.Context(), req.ID, req.IsBlacklist); err != nil {
		return toStatusError(err)
	}

	slog.Info("Updated blacklist flag", "admin", admin, "user_id", req.ID, "is_blacklist", req.IsBlacklist)

	return writeJSON(w, struct{}{})
}

func (s *APIServer) HandleAdminListPhotos(admin string, w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		return &StatusError{Err: ErrValidation, Status: http.StatusBadRequest}
	}

	photos, err := s.db.ListPhotosByUsername(r.Context(), username)
	if err != nil {
		return toStatusError(err)
	}

	return writeJSON(w, HandleListPhotosResponse{Photos: photos})
}

type HandleDeletePhotoRequest struct {
	ID string `json:"id"`
}

func (s *APIServer) HandleAdminDeletePhoto(admin string, w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return &StatusError{Err: nil, Status: http.StatusMethodNotAllowed}
	}

	var req HandleDeletePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	}

	if err := removePhoto(r.Context(), s.db, s.blobs, req.ID); err != nil {
		return toStatusError(err)
	}

	slog.Info("Admin deleted photo", "admin", admin, "photo_id", req.ID)

	return writeJSON(w, struct{}{})
}

type AdminHandlerFunc func(admin string, w http.ResponseWriter, r *http.Request) error

// adminMiddleware gates the console routes. The token must verify and its
// login stamp must still be inside the freshness window.
func (s *APIServer) adminMiddleware(f AdminHandlerFunc) APIFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		auth := r.Header.Get("Authorization")

		header := strings.Split(auth, " ")
		if len(header) != 2 {
			return &StatusError{Err: ErrUnauthorized, Status: http.StatusUnauthorized}
		}

		claims, ok := VerifyAdminToken(header[1])
		if !ok {
			return &StatusError{Err: ErrUnauthorized, Status: http.StatusUnauthorized}
		}

		if claims.IssuedAt == nil || !loginFresh(time.Now(), claims.IssuedAt.Time) {
			return &StatusError{Err: ErrUnauthorized, Status: http.StatusUnauthorized}
		}

		return f(claims.Subject, w, r)
	}
}
