package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"custodian/internal/config"
	"custodian/internal/usecase"
)

const minKeyBytes = 32

// Signer produces keyed HMAC-SHA256 signatures over the canonical
// encoding of a custody entry payload. Verification is constant time.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) (*Signer, error) {
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return &Signer{key: key}, nil
}

// NewSignerFromConfig reads the hex-encoded signing key. With no key
// configured a random one is generated; signatures then verify only
// within the current process lifetime.
func NewSignerFromConfig(cfg config.Config) (*Signer, error) {
	if cfg.SigningKeyHex == "" {
		key := make([]byte, minKeyBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Printf("SIGNING_KEY_HEX not set; using an ephemeral signing key")
		return &Signer{key: key}, nil
	}
	key, err := hex.DecodeString(cfg.SigningKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNING_KEY_HEX: %w", err)
	}
	return NewSigner(key)
}

func (s *Signer) Sign(payload usecase.SignaturePayload) (string, error) {
	if payload.EvidenceID == "" {
		return "", errors.New("signature payload missing evidence id")
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(encodePayload(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (s *Signer) Verify(payload usecase.SignaturePayload, signature string) error {
	if signature == "" {
		return errors.New("signature is required")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(encodePayload(payload))
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return errors.New("signature verification failed")
	}
	return nil
}

func encodePayload(payload usecase.SignaturePayload) []byte {
	return canonicalObject(map[string]string{
		"evidence_id":  payload.EvidenceID,
		"digest_alg":   payload.Digest.Alg,
		"digest_value": payload.Digest.Value,
		"timestamp":    payload.Timestamp.UTC().Format(time.RFC3339Nano),
		"action":       string(payload.Action),
		"actor":        payload.Actor,
	})
}

var _ usecase.EntrySigner = (*Signer)(nil)
