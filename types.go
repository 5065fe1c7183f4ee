package main

import "time"

// Photo metadata lives in the "images" table; the binary itself lives in the
// blob store and is referenced by the Image URL.
type Photo struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	Image     string    `json:"image"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	IsBlacklist bool   `json:"is_blacklist"`
}

// Session is a browser-local identity label, not a security boundary. The
// server only records the pair so repeated lookups return it unchanged.
type Session struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}
