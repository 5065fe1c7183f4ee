package main

import (
	"fmt"
	"os"
	"strings"
)

// Config collects everything the process reads from the environment so the
// views receive an explicit context object instead of doing ambient lookups.
type Config struct {
	ListenAddr string
	BaseURL    string
	BlobDir    string

	// AdminUsername/AdminPassword come from ADMIN_CREDENTIALS in the
	// "username#password" format. The password part may be a bcrypt hash.
	AdminUsername string
	AdminPassword string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr: os.Getenv("APP_HOST") + ":" + os.Getenv("APP_PORT"),
		BaseURL:    strings.TrimSuffix(os.Getenv("BASE_URL"), "/"),
		BlobDir:    os.Getenv("BLOB_DIR"),
	}

	if cfg.BlobDir == "" {
		cfg.BlobDir = "./blobs"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + cfg.ListenAddr
	}

	creds := os.Getenv("ADMIN_CREDENTIALS")
	username, password, ok := strings.Cut(creds, "#")
	if !ok || username == "" || password == "" {
		return nil, fmt.Errorf("config: ADMIN_CREDENTIALS must be in username#password format")
	}
	cfg.AdminUsername = username
	cfg.AdminPassword = password

	return cfg, nil
}
