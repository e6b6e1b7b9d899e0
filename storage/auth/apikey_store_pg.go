package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func generateSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func hashKey(key, salt string) string {
	h := sha256.New()
	h.Write([]byte(salt + key))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeKeyHash(salt, hash string) string {
	return base64.URLEncoding.EncodeToString([]byte(salt + ":" + hash))
}

func decodeKeyHash(encoded string) (salt, hash string, err error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("decode key hash: %w", err)
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid key hash format")
	}
	return parts[0], parts[1], nil
}

// PGAPIKeyStore persists API keys in Postgres. Only salted key hashes
// are stored at rest; lookups verify the presented key against each
// candidate row's salt.
type PGAPIKeyStore struct {
	pool *pgxpool.Pool
}

// NewPGAPIKeyStore connects and initializes schema.
func NewPGAPIKeyStore(ctx context.Context, dsn string) (*PGAPIKeyStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGAPIKeyStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGAPIKeyStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
  key_hash TEXT PRIMARY KEY,
  role TEXT NOT NULL DEFAULT 'owner',
  wallet_address TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close shuts down the pool.
func (s *PGAPIKeyStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// findByKey scans candidate rows and verifies the presented key
// against each row's salted hash. Per-key salts rule out an indexed
// lookup; the table holds a handful of keys.
func (s *PGAPIKeyStore) findByKey(ctx context.Context, key string) (APIKey, string, bool) {
	rows, err := s.pool.Query(ctx,
		"SELECT key_hash, role, wallet_address, source, created_at FROM api_keys")
	if err != nil {
		return APIKey{}, "", false
	}
	defer rows.Close()

	for rows.Next() {
		var rec APIKey
		var keyHash string
		if err := rows.Scan(&keyHash, &rec.Role, &rec.Wallet, &rec.Source, &rec.CreatedAt); err != nil {
			return APIKey{}, "", false
		}
		salt, hash, err := decodeKeyHash(keyHash)
		if err != nil {
			continue
		}
		if hashKey(key, salt) == hash {
			rec.Key = key
			return rec, keyHash, true
		}
	}
	return APIKey{}, "", false
}

// Validate implements APIKeyValidator.
func (s *PGAPIKeyStore) Validate(key string) bool {
	if key == "" {
		return false
	}
	_, _, ok := s.findByKey(context.Background(), key)
	return ok
}

// Get returns the API key record for the provided key.
func (s *PGAPIKeyStore) Get(key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	rec, _, ok := s.findByKey(context.Background(), key)
	return rec, ok
}

// Issue implements APIKeyIssuer.
func (s *PGAPIKeyStore) Issue(role, wallet, source string) (APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	salt, err := generateSalt()
	if err != nil {
		return APIKey{}, err
	}
	keyHash := encodeKeyHash(salt, hashKey(key, salt))

	rec := APIKey{
		Key:       key,
		Role:      role,
		Wallet:    wallet,
		Source:    source,
		CreatedAt: time.Now(),
	}
	_, err = s.pool.Exec(context.Background(),
		"INSERT INTO api_keys (key_hash, role, wallet_address, source, created_at) VALUES ($1,$2,$3,$4,$5)",
		keyHash, rec.Role, rec.Wallet, rec.Source, rec.CreatedAt)
	if err != nil {
		return APIKey{}, err
	}
	return rec, nil
}

// UpdateWallet binds a wallet identity to an existing API key.
func (s *PGAPIKeyStore) UpdateWallet(key, wallet string) (APIKey, error) {
	normalizedKey := strings.TrimSpace(key)
	normalizedWallet := strings.TrimSpace(wallet)
	if normalizedKey == "" {
		return APIKey{}, fmt.Errorf("api key required")
	}
	if normalizedWallet == "" {
		return APIKey{}, fmt.Errorf("wallet_address required")
	}
	ctx := context.Background()
	rec, keyHash, ok := s.findByKey(ctx, normalizedKey)
	if !ok {
		return APIKey{}, fmt.Errorf("api key not found")
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE api_keys SET wallet_address=$2 WHERE key_hash=$1",
		keyHash, normalizedWallet); err != nil {
		return APIKey{}, err
	}
	rec.Wallet = normalizedWallet
	return rec, nil
}

// Seed inserts a provided key if not empty. A key already present
// keeps its existing row.
func (s *PGAPIKeyStore) Seed(key, role, source string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	ctx := context.Background()
	if _, _, ok := s.findByKey(ctx, key); ok {
		return
	}
	salt, err := generateSalt()
	if err != nil {
		return
	}
	keyHash := encodeKeyHash(salt, hashKey(key, salt))
	_, _ = s.pool.Exec(ctx,
		"INSERT INTO api_keys (key_hash, role, source, created_at) VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING",
		keyHash, role, source, time.Now())
}
