package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialsMatchPlain(t *testing.T) {
	configured := Credentials{Username: "admin", Password: "secret"}

	assert.True(t, credentialsMatch(Credentials{Username: "admin", Password: "secret"}, configured))
	assert.False(t, credentialsMatch(Credentials{Username: "admin", Password: "wrong"}, configured))
	assert.False(t, credentialsMatch(Credentials{Username: "someone", Password: "secret"}, configured))
	assert.False(t, credentialsMatch(Credentials{}, configured))
}

func TestCredentialsMatchBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	assert.NoError(t, err)
	configured := Credentials{Username: "admin", Password: string(hash)}

	assert.True(t, credentialsMatch(Credentials{Username: "admin", Password: "secret"}, configured))
	assert.False(t, credentialsMatch(Credentials{Username: "admin", Password: "wrong"}, configured))
	// The hash itself is not the password.
	assert.False(t, credentialsMatch(Credentials{Username: "admin", Password: string(hash)}, configured))
}

func TestLoginFreshWindow(t *testing.T) {
	now := time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC)

	assert.True(t, loginFresh(now, now))
	assert.True(t, loginFresh(now, now.Add(-29*time.Minute)))
	assert.False(t, loginFresh(now, now.Add(-30*time.Minute)))
	assert.False(t, loginFresh(now, now.Add(-31*time.Minute)))
	assert.False(t, loginFresh(now, time.Time{}))
	assert.False(t, loginFresh(now, now.Add(time.Minute)))
}

func TestFilterUsers(t *testing.T) {
	users := []User{
		{ID: "1", Username: "Derian"},
		{ID: "2", Username: "felicia"},
		{ID: "3", Username: "derian-cousin"},
		{ID: "4", Username: "guest"},
	}

	assert.Equal(t, users, filterUsers(users, ""))

	matched := filterUsers(users, "DERI")
	assert.Equal(t, 2, len(matched))
	assert.Equal(t, "Derian", matched[0].Username)
	assert.Equal(t, "derian-cousin", matched[1].Username)

	assert.Equal(t, 1, len(filterUsers(users, "gue")))
	assert.Equal(t, 0, len(filterUsers(users, "nobody")))
}
