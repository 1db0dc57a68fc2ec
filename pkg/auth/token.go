package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies Stockroom tokens
	TokenPrefix = "stk_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: stk_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	return fullToken, tg.HashToken(fullToken), tg.ExtractPrefix(fullToken), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// ExtractPrefix extracts the prefix from a token for display
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

// TokenStore manages API token lifecycle in the api_tokens table
type TokenStore struct {
	db        *sql.DB
	generator *TokenGenerator
	now       func() time.Time
}

// NewTokenStore creates a new token store
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{
		db:        db,
		generator: NewTokenGenerator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateToken creates a token for userID. The plaintext token is returned
// once and never stored.
func (ts *TokenStore) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := ts.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   expiresAt,
		CreatedAt:   ts.now(),
	}

	err = ts.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, apiToken.UserID, apiToken.TokenHash, apiToken.TokenPrefix, apiToken.Name, apiToken.ExpiresAt, apiToken.CreatedAt,
	).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken looks a token up by hash and checks revocation and expiry
func (ts *TokenStore) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := ts.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var apiToken APIToken
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := ts.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE token_hash = $1
	`, ts.generator.HashToken(token)).Scan(
		&apiToken.ID,
		&apiToken.UserID,
		&apiToken.TokenHash,
		&apiToken.TokenPrefix,
		&apiToken.Name,
		&expiresAt,
		&lastUsedAt,
		&apiToken.CreatedAt,
		&revokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if revokedAt.Valid {
		return nil, ErrTokenRevoked
	}
	now := ts.now()
	if expiresAt.Valid && !expiresAt.Time.After(now) {
		return nil, ErrTokenExpired
	}

	if _, err := ts.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, apiToken.ID); err != nil {
		return nil, fmt.Errorf("failed to touch token: %w", err)
	}

	if expiresAt.Valid {
		apiToken.ExpiresAt = &expiresAt.Time
	}
	apiToken.LastUsedAt = &now
	return &apiToken, nil
}

// RevokeToken revokes a token
func (ts *TokenStore) RevokeToken(ctx context.Context, tokenID int64) error {
	result, err := ts.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		ts.now(), tokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("token not found or already revoked: %d", tokenID)
	}
	return nil
}

// CleanupExpiredTokens revokes tokens past their expiry
func (ts *TokenStore) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	now := ts.now()
	result, err := ts.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE expires_at < $2 AND revoked_at IS NULL`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tokens: %w", err)
	}
	return result.RowsAffected()
}
