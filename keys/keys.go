// Package keys manages the Ed25519 keypairs that identify journal owners.
//
// Keys are stored on the local filesystem as a hex-encoded 32-byte seed
// followed by a newline, readable only by the current user.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacentio/quill/journal"
)

// ErrKeyExists is returned by Save when the file exists and overwrite is false.
var ErrKeyExists = errors.New("keys: key file already exists")

// Keypair is an owner's signing key.
type Keypair struct {
	private ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate(rand io.Reader) (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Keypair{private: priv}, nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Owner returns the public identity of the keypair.
func (k *Keypair) Owner() journal.Owner {
	var o journal.Owner
	copy(o[:], k.private.Public().(ed25519.PublicKey))
	return o
}

// Seed returns the private seed.
func (k *Keypair) Seed() []byte {
	return k.private.Seed()
}

// Sign returns an Ed25519 signature over sha256(message).
func (k *Keypair) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ed25519.Sign(k.private, digest[:])
}

// Verify reports whether sig is owner's signature over sha256(message).
func Verify(owner journal.Owner, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	digest := sha256.Sum256(message)
	return ed25519.Verify(ed25519.PublicKey(owner[:]), digest[:], sig)
}

// ParseSeedHex decodes a hex seed, tolerating whitespace and a 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// DefaultPath returns ~/.quill/id.key.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".quill", "id.key"), nil
}

// Save writes k's seed to path.
func Save(path string, k *Keypair, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return ErrKeyExists
	}
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(k.Seed()) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

// Load reads a keypair saved by Save.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := ParseSeedHex(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FromSeed(seed)
}
