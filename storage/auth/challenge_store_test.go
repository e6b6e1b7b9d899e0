package auth

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	core "covergate-backend/core/cover"
)

func TestChallengeVerify(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet := core.SignerID(priv.PubKey())

	t.Run("signed nonce verifies once", func(t *testing.T) {
		s := NewChallengeStore(time.Minute)
		ch, err := s.Issue(wallet)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		sig := core.SignDigest(priv, core.ChallengeDigest(ch.Nonce))
		if !s.Verify(wallet, sig) {
			t.Fatal("valid signature rejected")
		}
		if s.Verify(wallet, sig) {
			t.Error("challenge should be consumed after success")
		}
	})

	t.Run("wrong key fails", func(t *testing.T) {
		s := NewChallengeStore(time.Minute)
		ch, _ := s.Issue(wallet)
		rogue, _ := btcec.NewPrivateKey()
		sig := core.SignDigest(rogue, core.ChallengeDigest(ch.Nonce))
		if s.Verify(wallet, sig) {
			t.Error("signature from a different key accepted")
		}
	})

	t.Run("expired challenge fails", func(t *testing.T) {
		s := NewChallengeStore(-time.Second)
		ch, _ := s.Issue(wallet)
		sig := core.SignDigest(priv, core.ChallengeDigest(ch.Nonce))
		if s.Verify(wallet, sig) {
			t.Error("expired challenge accepted")
		}
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		s := NewChallengeStore(time.Minute)
		ch, _ := s.Issue(wallet)
		for i := 0; i < 5; i++ {
			if s.Verify(wallet, "bm90LWEtc2ln") {
				t.Fatal("garbage signature accepted")
			}
		}
		// The exhausted challenge no longer accepts even the right answer.
		sig := core.SignDigest(priv, core.ChallengeDigest(ch.Nonce))
		if s.Verify(wallet, sig) {
			t.Error("exhausted challenge accepted")
		}
	})

	t.Run("unknown wallet fails", func(t *testing.T) {
		s := NewChallengeStore(time.Minute)
		if s.Verify("nobody", "sig") {
			t.Error("verification without an issued challenge accepted")
		}
	})
}

func TestAPIKeyStore(t *testing.T) {
	s := NewAPIKeyStore()
	s.Seed("op-key", RoleOperator, "seed")

	if !s.Validate("op-key") {
		t.Error("seeded key not valid")
	}
	if s.Validate("other") {
		t.Error("unknown key validated")
	}
	if !HasRole(s, "op-key", RoleOperator) {
		t.Error("operator role check failed")
	}
	if HasRole(s, "op-key", RoleAdmin) {
		t.Error("operator key passed admin check")
	}

	s.Seed("root", RoleAdmin, "seed")
	if !HasRole(s, "root", RoleOperator) {
		t.Error("admin key should pass any role check")
	}

	rec, err := s.Issue(RoleOwner, "walletid", "registration")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, ok := s.Get(rec.Key)
	if !ok || got.Wallet != "walletid" || got.Role != RoleOwner {
		t.Errorf("issued key not retrievable: %+v ok=%v", got, ok)
	}

	if _, err := s.UpdateWallet(rec.Key, "newwallet"); err != nil {
		t.Fatalf("update wallet: %v", err)
	}
	got, _ = s.Get(rec.Key)
	if got.Wallet != "newwallet" {
		t.Errorf("wallet not updated: %+v", got)
	}
	if _, err := s.UpdateWallet("missing", "w"); err == nil {
		t.Error("expected error for unknown key")
	}
}
