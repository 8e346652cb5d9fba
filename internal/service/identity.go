package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

var ErrInvalidToken = errors.New("invalid identity token")

const tokenLifetime = 24 * time.Hour

// IdentityService - resolves tokens to player identities. Authentication
// itself happens elsewhere; this only signs and verifies the resulting
// identity claims.
type IdentityService interface {
	IssueToken(playerID, displayName string) (string, error)
	IssueGuestToken() (string, error)
	CurrentIdentity(token string) (*entity.PlayerRef, error)
}

type identityService struct {
	secretKey string
}

func NewIdentityService(secretKey string) IdentityService {
	return &identityService{
		secretKey: secretKey,
	}
}

func (that *identityService) IssueToken(playerID, displayName string) (string, error) {
	claims := jwt.MapClaims{}
	claims["sub"] = playerID
	claims["name"] = displayName
	claims["exp"] = time.Now().Add(tokenLifetime).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(that.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// IssueGuestToken - a fresh anonymous identity for players without an
// account. Guests can play but stay off the leaderboard.
func (that *identityService) IssueGuestToken() (string, error) {
	return that.IssueToken(uuid.NewString(), "Guest")
}

func (that *identityService) CurrentIdentity(tokenString string) (*entity.PlayerRef, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return []byte(that.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	playerID, _ := claims["sub"].(string)
	displayName, _ := claims["name"].(string)
	if playerID == "" {
		return nil, ErrInvalidToken
	}

	return &entity.PlayerRef{ID: playerID, DisplayName: displayName, Connected: true}, nil
}
