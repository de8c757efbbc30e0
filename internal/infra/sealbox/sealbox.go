package sealbox

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"custodian/internal/config"
	"custodian/internal/domain"
	"custodian/internal/usecase"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealbox is the encryption collaborator: it seals evidence content with
// an AEAD before storage and opens it on retrieval. The nonce is prefixed
// to the ciphertext; the evidence id is bound as additional data so a
// blob cannot be replayed under another id.
type Sealbox struct {
	aead cipher.AEAD
	now  func() time.Time
}

func New(key []byte) (*Sealbox, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealbox key: %w", err)
	}
	return &Sealbox{aead: aead, now: time.Now}, nil
}

// NewFromConfig reads the hex-encoded seal key. With no key configured an
// ephemeral one is generated; stored blobs then survive only the current
// process.
func NewFromConfig(cfg config.Config) (*Sealbox, error) {
	if cfg.SealKeyHex == "" {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Printf("SEAL_KEY_HEX not set; using an ephemeral seal key")
		return New(key)
	}
	key, err := hex.DecodeString(cfg.SealKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid SEAL_KEY_HEX: %w", err)
	}
	return New(key)
}

func (s *Sealbox) EncryptEvidence(ctx context.Context, ev domain.Evidence) (domain.EncryptedEvidence, error) {
	if ev.EvidenceID == "" {
		return domain.EncryptedEvidence{}, errors.New("evidence id is required")
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return domain.EncryptedEvidence{}, err
	}
	sealed := s.aead.Seal(nonce, nonce, ev.Content, []byte(ev.EvidenceID))
	return domain.EncryptedEvidence{
		EvidenceID:              ev.EvidenceID,
		Ciphertext:              sealed,
		OriginalDigest:          ev.Digest,
		OriginalSecondaryDigest: ev.SecondaryDigest,
		Collector:               ev.Collector,
		CollectedAt:             ev.CollectedAt,
		EncryptedAt:             s.now().UTC(),
	}, nil
}

func (s *Sealbox) DecryptEvidence(ctx context.Context, enc domain.EncryptedEvidence) (domain.Evidence, error) {
	if len(enc.Ciphertext) < s.aead.NonceSize() {
		return domain.Evidence{}, errors.New("ciphertext shorter than nonce")
	}
	nonce := enc.Ciphertext[:s.aead.NonceSize()]
	content, err := s.aead.Open(nil, nonce, enc.Ciphertext[s.aead.NonceSize():], []byte(enc.EvidenceID))
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("open sealed evidence: %w", err)
	}
	return domain.Evidence{
		EvidenceID:      enc.EvidenceID,
		Content:         content,
		Digest:          enc.OriginalDigest,
		SecondaryDigest: enc.OriginalSecondaryDigest,
		Collector:       enc.Collector,
		CollectedAt:     enc.CollectedAt,
	}, nil
}

var _ usecase.Encryptor = (*Sealbox)(nil)
