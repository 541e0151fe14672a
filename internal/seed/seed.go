// Package seed derives deterministic storage keys for journal accounts.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const (
	entryPrefix   = "journal"
	counterPrefix = "journal_count"
)

// EntryKey computes the storage key of the entry with the given id under owner.
// The id is encoded little-endian, matching the seed layout of the ledger the
// keys were first derived on.
func EntryKey(id uint64, owner [32]byte) string {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], id)
	return derive([]byte(entryPrefix), le[:], owner[:])
}

// CounterKey computes the storage key of owner's sequence counter.
func CounterKey(owner [32]byte) string {
	return derive([]byte(counterPrefix), owner[:])
}

// derive hashes the length-prefixed seeds so that no two seed lists collide.
func derive(seeds ...[]byte) string {
	h := sha256.New()
	var n [2]byte
	for _, s := range seeds {
		binary.BigEndian.PutUint16(n[:], uint16(len(s)))
		h.Write(n[:])
		h.Write(s)
	}
	return hex.EncodeToString(h.Sum(nil))
}
