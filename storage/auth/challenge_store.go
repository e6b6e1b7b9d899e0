package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	core "covergate-backend/core/cover"
)

// Challenge represents a pending wallet verification.
type Challenge struct {
	Nonce       string    `json:"nonce"`
	Wallet      string    `json:"wallet_address"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// ChallengeStore keeps in-memory challenges keyed by wallet identity.
type ChallengeStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	challenges map[string]Challenge
}

// NewChallengeStore builds a new in-memory challenge store.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		ttl:        ttl,
		challenges: make(map[string]Challenge),
	}
}

// Issue creates or refreshes a challenge for a wallet.
func (s *ChallengeStore) Issue(wallet string) (Challenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return Challenge{}, err
	}
	ch := Challenge{
		Nonce:       nonce,
		Wallet:      wallet,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(s.ttl),
		MaxAttempts: 5,
	}
	s.mu.Lock()
	s.challenges[wallet] = ch
	s.mu.Unlock()
	return ch, nil
}

// Verify recovers the signer from a compact signature over the
// outstanding nonce and checks it matches the claimed wallet identity.
// The challenge is consumed on success and on attempt exhaustion.
func (s *ChallengeStore) Verify(wallet, signatureB64 string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[wallet]
	if !ok {
		return false
	}
	if time.Now().After(ch.ExpiresAt) {
		delete(s.challenges, wallet)
		return false
	}
	ch.Attempts++
	s.challenges[wallet] = ch
	if ch.Attempts > ch.MaxAttempts {
		delete(s.challenges, wallet)
		return false
	}
	signer, err := core.RecoverSigner(core.ChallengeDigest(ch.Nonce), signatureB64)
	if err != nil || signer != wallet {
		return false
	}
	delete(s.challenges, wallet)
	return true
}

func randomNonce() (string, error) {
	b := make([]byte, 16) // 128-bit nonce
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
