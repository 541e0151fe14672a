package journal

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Encoded layout of an entry (little-endian):
//
//	discriminator [8]
//	id            u64
//	owner         [32]
//	created_at    i64
//	updated_at    i64
//	title         u32 length + bytes
//	content       u32 length + bytes
const (
	discriminatorSize = 8
	entryFixedSize    = discriminatorSize + 8 + OwnerSize + 8 + 8 + 4 + 4

	// CounterSpace is the encoded size of a sequence counter.
	CounterSpace = discriminatorSize + 8 + OwnerSize
)

var (
	entryDiscriminator   = discriminator("JournalEntry")
	counterDiscriminator = discriminator("JournalCount")
)

var errMalformed = errors.New("journal: malformed account data")

func discriminator(name string) [discriminatorSize]byte {
	var d [discriminatorSize]byte
	h := sha256.Sum256([]byte("account:" + name))
	copy(d[:], h[:])
	return d
}

// EntrySpace returns the exact encoded size of an entry with the given title
// and content.
func EntrySpace(title, content string) int {
	return entryFixedSize + len(title) + len(content)
}

// Realloc returns a buffer of exactly n bytes. The common prefix of buf is
// preserved and every byte past it is zero.
func Realloc(buf []byte, n int) []byte {
	if n <= cap(buf) {
		old := len(buf)
		buf = buf[:n]
		if n > old {
			clear(buf[old:])
		}
		return buf
	}
	out := make([]byte, n)
	copy(out, buf)
	return out
}

// EncodeInto writes e into buf, which must be exactly e.Space() bytes.
func EncodeInto(buf []byte, e *Entry) error {
	if len(buf) != e.Space() {
		return fmt.Errorf("journal: buffer is %d bytes, entry needs %d", len(buf), e.Space())
	}
	off := copy(buf, entryDiscriminator[:])
	binary.LittleEndian.PutUint64(buf[off:], e.ID)
	off += 8
	off += copy(buf[off:], e.Owner[:])
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.CreatedAt))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.UpdatedAt))
	off += 8
	off = putString(buf, off, e.Title)
	putString(buf, off, e.Content)
	return nil
}

// MarshalBinary encodes e into a freshly allocated exact-size buffer.
func (e *Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, e.Space())
	if err := EncodeInto(buf, e); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalEntry decodes an entry. Version is left zero.
func UnmarshalEntry(data []byte) (*Entry, error) {
	if len(data) < entryFixedSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than an entry", errMalformed, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) != entryDiscriminator {
		return nil, fmt.Errorf("%w: not a journal entry", errMalformed)
	}
	e := &Entry{}
	off := discriminatorSize
	e.ID = binary.LittleEndian.Uint64(data[off:])
	off += 8
	off += copy(e.Owner[:], data[off:])
	e.CreatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	e.UpdatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	var err error
	if e.Title, off, err = getString(data, off); err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	if e.Content, off, err = getString(data, off); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	for _, b := range data[off:] {
		if b != 0 {
			return nil, fmt.Errorf("%w: non-zero trailing bytes", errMalformed)
		}
	}
	return e, nil
}

// MarshalBinary encodes the counter.
func (c *SequenceCounter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CounterSpace)
	off := copy(buf, counterDiscriminator[:])
	binary.LittleEndian.PutUint64(buf[off:], c.Count)
	off += 8
	copy(buf[off:], c.Owner[:])
	return buf, nil
}

// UnmarshalCounter decodes a sequence counter.
func UnmarshalCounter(data []byte) (*SequenceCounter, error) {
	if len(data) != CounterSpace {
		return nil, fmt.Errorf("%w: counter is %d bytes", errMalformed, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) != counterDiscriminator {
		return nil, fmt.Errorf("%w: not a journal counter", errMalformed)
	}
	c := &SequenceCounter{Count: binary.LittleEndian.Uint64(data[discriminatorSize:])}
	copy(c.Owner[:], data[discriminatorSize+8:])
	return c, nil
}

func putString(buf []byte, off int, s string) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	off += 4
	return off + copy(buf[off:], s)
}

func getString(data []byte, off int) (string, int, error) {
	if len(data)-off < 4 {
		return "", off, fmt.Errorf("%w: missing length prefix", errMalformed)
	}
	n := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if n > len(data)-off {
		return "", off, fmt.Errorf("%w: length %d overruns buffer", errMalformed, n)
	}
	return string(data[off : off+n]), off + n, nil
}
