package main

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// The admin token lifetime doubles as the login freshness window: within it
// the console skips the credential prompt, after it the operator re-enters
// the pair.
const (
	AdminLoginWindow = 30 * time.Minute
	JWTSecretEnv     = "JWT_SECRET_KEY"
	JWTIssuer        = "wedding_photo_share"
)

type Token struct {
	Access string `json:"access_token"`
}

func NewAdminToken(username string, now time.Time) (*Token, error) {
	claims := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    JWTIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(AdminLoginWindow)),
		IssuedAt:  &jwt.NumericDate{Time: now},
		Subject:   username,
	})

	secret := []byte(os.Getenv(JWTSecretEnv))

	token, err := claims.SignedString(secret)
	if err != nil {
		return nil, err
	}

	return &Token{Access: token}, nil
}

func VerifyAdminToken(token string) (*jwt.RegisteredClaims, bool) {
	var (
		claims = &jwt.RegisteredClaims{}
		secret = []byte(os.Getenv(JWTSecretEnv))
	)

	tkn, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (any, error) { return secret, nil })
	if err != nil {
		return nil, false
	}

	return claims, tkn.Valid
}
