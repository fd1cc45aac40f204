package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"wedlink/entity"
	"wedlink/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Database interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

// Auth verifies bearer tokens issued by the login service (HS256, subject = user id)
// and loads the profile behind them.
type Auth struct {
	db     Database
	secret []byte
	issuer string
	now    func() time.Time
}

func New(db Database, conf config.AuthConfig) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(conf.JWTSecret),
		issuer: conf.Issuer,
		now:    time.Now,
	}
}

func (a *Auth) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	userID, err := a.verify(token)
	if err != nil {
		return nil, err
	}
	return a.db.GetUser(ctx, userID)
}

func (a *Auth) verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID; used by tooling and tests, logins happen elsewhere.
func (a *Auth) Issue(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
