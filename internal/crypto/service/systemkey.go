package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
)

// Sub-key purposes. Each purpose yields an independent key; knowing one
// sub-key reveals nothing about the others or the root.
const (
	purposeExternalIdentity = "ext-identity-wrap"
	purposeInternalRPC      = "internal-rpc-token"
	purposePendingShare     = "pending-share-wrap"
	purposeTokenSigning     = "token-signing"
)

// SystemKeyService owns the machine-local 32-byte root secret. The root is
// generated on first boot and persisted with restricted file permissions,
// optionally sealed by an external KMS keeper. Sub-keys are derived with
// HKDF-SHA256 over "purpose:<name>" and cached per process; the root itself
// is never exported.
type SystemKeyService struct {
	mu      sync.Mutex
	root    []byte
	subkeys map[string][]byte
}

// LoadSystemKeys reads the root secret from path, creating it on first boot.
// When keeper is non-nil the file holds the KMS-sealed form of the root.
func LoadSystemKeys(ctx context.Context, path string, keeper KMSKeeper) (*SystemKeyService, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		root := raw
		if keeper != nil {
			root, err = keeper.Decrypt(ctx, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to unseal system key: %w", err)
			}
		}
		if len(root) != 32 {
			return nil, cryptoDomain.ErrInvalidKeySize
		}
		return newSystemKeyService(root), nil

	case os.IsNotExist(err):
		root := make([]byte, 32)
		if _, err := rand.Read(root); err != nil {
			return nil, fmt.Errorf("failed to generate system key: %w", err)
		}

		stored := root
		if keeper != nil {
			stored, err = keeper.Encrypt(ctx, root)
			if err != nil {
				return nil, fmt.Errorf("failed to seal system key: %w", err)
			}
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
		if err := os.WriteFile(path, stored, 0o600); err != nil {
			return nil, fmt.Errorf("failed to persist system key: %w", err)
		}

		return newSystemKeyService(root), nil

	default:
		return nil, fmt.Errorf("failed to read system key: %w", err)
	}
}

func newSystemKeyService(root []byte) *SystemKeyService {
	return &SystemKeyService{
		root:    root,
		subkeys: make(map[string][]byte),
	}
}

// subkey derives (and caches) n bytes for a purpose.
func (s *SystemKeyService) subkey(purpose string, n int) []byte {
	cacheKey := fmt.Sprintf("%s/%d", purpose, n)

	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.subkeys[cacheKey]; ok {
		return key
	}

	key := make([]byte, n)
	reader := hkdf.New(sha256.New, s.root, nil, []byte("purpose:"+purpose))
	if _, err := io.ReadFull(reader, key); err != nil {
		// HKDF only fails past 255 blocks; key lengths here are far below that.
		panic(fmt.Sprintf("hkdf expansion failed: %v", err))
	}

	s.subkeys[cacheKey] = key
	return key
}

// ExternalIdentityWrapKey derives the DEK wrapping key for an external
// subject. The subject id is folded into the derivation so each subject gets
// a distinct key.
func (s *SystemKeyService) ExternalIdentityWrapKey(subject string) []byte {
	return s.subkey(purposeExternalIdentity+"|"+subject, 32)
}

// PendingShareWrapKey returns the key wrapping pending-share ciphertexts.
func (s *SystemKeyService) PendingShareWrapKey() []byte {
	return s.subkey(purposePendingShare, 32)
}

// TokenSigningKey returns the process-wide bearer token signing key.
func (s *SystemKeyService) TokenSigningKey() []byte {
	return s.subkey(purposeTokenSigning, 32)
}

// InternalToken returns the loopback RPC token of the requested length.
// Callers must compare it in constant time.
func (s *SystemKeyService) InternalToken(n int) []byte {
	return s.subkey(purposeInternalRPC, n)
}

// Close wipes the root and all cached sub-keys.
func (s *SystemKeyService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cryptoDomain.Zero(s.root)
	for _, key := range s.subkeys {
		cryptoDomain.Zero(key)
	}
	s.subkeys = make(map[string][]byte)
}
