// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidWorkerToken = errors.New("invalid worker token")
	ErrExpiredWorkerToken = errors.New("worker token has expired")
)

// WorkerClaims is the claim set embedded in WORKER_EPHEMERAL_TOKEN
// (spec.md §6), scoping the token to exactly the one file the worker
// was spawned for.
type WorkerClaims struct {
	jwt.RegisteredClaims
	FileID string `json:"file_id"`
}

// TokenService mints and validates a worker's ephemeral token.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService builds a TokenService signing with secret; ttl
// should comfortably exceed defaultWorkerDeadline.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultWorkerDeadline
	}
	return &TokenService{secret: secret, issuer: "quadratic-cloud-controller", ttl: ttl}
}

// Mint issues a fresh WORKER_EPHEMERAL_TOKEN scoped to fileID.
func (s *TokenService) Mint(fileID string) (string, error) {
	now := time.Now()
	claims := &WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fileID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		FileID: fileID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("controller: sign worker token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and confirms it was scoped to fileID.
func (s *TokenService) Validate(tokenString, fileID string) (*WorkerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WorkerClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredWorkerToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkerToken, err)
	}

	claims, ok := token.Claims.(*WorkerClaims)
	if !ok || !token.Valid || claims.FileID != fileID {
		return nil, ErrInvalidWorkerToken
	}
	return claims, nil
}
