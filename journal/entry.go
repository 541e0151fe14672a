package journal

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/jacentio/quill/internal/seed"
)

const (
	// MaxTitleLen is the maximum encoded length of a title in bytes.
	MaxTitleLen = 50

	// MaxContentLen is the maximum encoded length of content in bytes.
	MaxContentLen = 500
)

// OwnerSize is the size of an owner identity in bytes.
const OwnerSize = 32

// Owner identifies the party controlling a set of entries and their counter.
// It is an Ed25519 public key.
type Owner [OwnerSize]byte

// String returns the base58 encoding of the owner.
func (o Owner) String() string {
	return base58.Encode(o[:])
}

// IsZero reports whether o is the all-zero identity.
func (o Owner) IsZero() bool {
	return o == Owner{}
}

// MarshalText implements encoding.TextMarshaler.
func (o Owner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Owner) UnmarshalText(text []byte) error {
	parsed, err := ParseOwner(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOwner decodes a base58 owner identity.
func ParseOwner(s string) (Owner, error) {
	var o Owner
	b, err := base58.Decode(s)
	if err != nil {
		return o, fmt.Errorf("decode owner: %w", err)
	}
	if len(b) != OwnerSize {
		return o, fmt.Errorf("decode owner: expected %d bytes, got %d", OwnerSize, len(b))
	}
	copy(o[:], b)
	return o, nil
}

// OwnerFromBytes copies b into an Owner.
func OwnerFromBytes(b []byte) (Owner, error) {
	var o Owner
	if len(b) != OwnerSize {
		return o, fmt.Errorf("owner must be %d bytes, got %d", OwnerSize, len(b))
	}
	copy(o[:], b)
	return o, nil
}

// Key addresses one entry.
type Key struct {
	ID    uint64
	Owner Owner
}

// String returns the derived storage key.
func (k Key) String() string {
	return seed.EntryKey(k.ID, k.Owner)
}

// CounterKey returns the derived storage key of owner's sequence counter.
func CounterKey(owner Owner) string {
	return seed.CounterKey(owner)
}

// Entry is a single journal entry.
type Entry struct {
	ID        uint64 `json:"id"`
	Owner     Owner  `json:"owner"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Title     string `json:"title"`
	Content   string `json:"content"`

	// Version is the optimistic lock token kept by the backend. It starts at
	// 1 and is incremented by every committed mutation. It is not part of
	// the encoded layout.
	Version uint64 `json:"version"`
}

// Key returns the key the entry is stored under.
func (e *Entry) Key() Key {
	return Key{ID: e.ID, Owner: e.Owner}
}

// Space returns the exact number of bytes the entry occupies.
func (e *Entry) Space() int {
	return EntrySpace(e.Title, e.Content)
}

// SequenceCounter tracks the last id handed out to an owner.
type SequenceCounter struct {
	Count uint64 `json:"count"`
	Owner Owner  `json:"owner"`
}

// NextID returns the id following c.Count. It fails with ErrInvalidID when
// the counter is exhausted.
func NextID(c *SequenceCounter) (uint64, error) {
	if c.Count == ^uint64(0) {
		return 0, fmt.Errorf("%w: sequence counter overflow", ErrInvalidID)
	}
	return c.Count + 1, nil
}

// ValidateTitle checks the title length limit.
func ValidateTitle(title string) error {
	if len(title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateContent checks the content length limit.
func ValidateContent(content string) error {
	if len(content) > MaxContentLen {
		return ErrContentTooLong
	}
	return nil
}
