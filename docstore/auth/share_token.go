package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidShareToken = errors.New("share token is invalid or expired")

// ShareTokenManager issues and verifies the signed tokens behind read-only
// document share links. Share tokens are deliberately signed with a key
// derived separately from the session JWT secret so that a leaked share link
// can never be replayed as a session credential.
type ShareTokenManager struct {
	secret []byte
}

func NewShareTokenManager(secret []byte) *ShareTokenManager {
	return &ShareTokenManager{secret: secret}
}

const documentIdClaim = "document_id"

func (m *ShareTokenManager) CreateShareToken(documentId uuid.UUID, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		documentIdClaim: documentId.String(),
		"exp":           jwt.NewNumericDate(time.Now().Add(ttl)),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("error signing share token: %w", err)
	}
	return signed, nil
}

func (m *ShareTokenManager) VerifyShareToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidShareToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidShareToken
	}

	idStr, ok := claims[documentIdClaim].(string)
	if !ok {
		return uuid.Nil, ErrInvalidShareToken
	}

	documentId, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ErrInvalidShareToken
	}

	return documentId, nil
}
