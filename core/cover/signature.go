package cover

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ErrInvalidSignature covers malformed or unrecoverable signatures.
var ErrInvalidSignature = Err("invalid authorization signature")

// Domain tag for signed quote payloads. Any change to the tag or the
// field framing below invalidates every outstanding signature.
const quoteSignaturePrefix = "CoverGate Signed Quote:\n"

const (
	payloadVariantBase     byte = 0x01
	payloadVariantExtended byte = 0x02
)

// QuoteDigest returns the double-SHA256 digest of the base submission
// payload under the domain tag. The framing is positional: every field
// of the submission is written, so a signature over one set of terms can
// never authorize another.
func QuoteDigest(sub QuoteSubmission) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, quoteSignaturePrefix)
	buf.WriteByte(payloadVariantBase)
	writeSubmission(&buf, sub)
	return doubleSHA256(buf.Bytes())
}

// ExtendedQuoteDigest covers the extended submission variant: the
// submission plus the covered-party list, integrator id, and mint-to
// address.
func ExtendedQuoteDigest(sub QuoteSubmission, coveredAddresses []string, integratorID uint32, mintTo string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, quoteSignaturePrefix)
	buf.WriteByte(payloadVariantExtended)
	writeSubmission(&buf, sub)
	_ = wire.WriteVarInt(&buf, 0, uint64(len(coveredAddresses)))
	for _, addr := range coveredAddresses {
		_ = wire.WriteVarString(&buf, 0, addr)
	}
	_ = binary.Write(&buf, binary.BigEndian, integratorID)
	_ = wire.WriteVarString(&buf, 0, mintTo)
	return doubleSHA256(buf.Bytes())
}

func writeSubmission(buf *bytes.Buffer, sub QuoteSubmission) {
	_ = binary.Write(buf, binary.BigEndian, sub.ProviderID)
	_ = binary.Write(buf, binary.BigEndian, sub.ProductID)
	_ = binary.Write(buf, binary.BigEndian, sub.CoverAssetID)
	_ = binary.Write(buf, binary.BigEndian, sub.CoverAmount)
	_ = binary.Write(buf, binary.BigEndian, sub.PaymentAssetID)
	_ = binary.Write(buf, binary.BigEndian, sub.PremiumAmount)
	_ = binary.Write(buf, binary.BigEndian, sub.FeeAmount)
	_ = binary.Write(buf, binary.BigEndian, int64(sub.CoverExpiry.Seconds()))
	_ = binary.Write(buf, binary.BigEndian, sub.ValidUntil.Unix())
}

func doubleSHA256(b []byte) []byte {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

// RecoverSigner recovers the signer identity from a base64 compact
// signature over the given digest. The identity is the hex HASH160 of
// the recovered compressed public key; whether that identity holds the
// authorizer role is the caller's concern.
func RecoverSigner(digest []byte, signatureB64 string) (string, error) {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if len(sigBytes) != 65 {
		return "", ErrInvalidSignature
	}
	pubKey, _, err := ecdsa.RecoverCompact(sigBytes, digest)
	if err != nil {
		return "", ErrInvalidSignature
	}
	return SignerID(pubKey), nil
}

// SignerID derives the wallet identity for a public key.
func SignerID(pubKey *btcec.PublicKey) string {
	return hex.EncodeToString(btcutil.Hash160(pubKey.SerializeCompressed()))
}

// SignDigest produces a base64 compact signature over a digest. Used by
// the signing tools and by tests; the service side only ever recovers.
func SignDigest(priv *btcec.PrivateKey, digest []byte) string {
	sig := ecdsa.SignCompact(priv, digest, true)
	return base64.StdEncoding.EncodeToString(sig)
}

// Domain tag for wallet ownership challenges, kept distinct from the
// quote tag so a challenge signature can never double as a quote
// authorization.
const challengePrefix = "CoverGate Wallet Challenge:\n"

// ChallengeDigest returns the digest a wallet signs to prove ownership
// of its identity during API key registration.
func ChallengeDigest(nonce string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, challengePrefix)
	_ = wire.WriteVarString(&buf, 0, nonce)
	return doubleSHA256(buf.Bytes())
}
