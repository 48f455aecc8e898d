// Package meetingid maps human-friendly meeting handles onto UUID-shaped
// storage keys.
//
// The backend stores meetings in UUID-typed columns while clients are free to
// pick readable handles such as "board-q3-review". [Normalize] derives a
// stable UUID for such a handle without a server round-trip and without
// remembering the mapping anywhere: the same handle always yields the same
// identifier, in every process that runs this code (including the JavaScript
// client, which hashes the same UTF-16 code units).
package meetingid

import (
	"encoding/binary"
	"math/bits"
	"regexp"
	"unicode/utf16"

	"github.com/google/uuid"
)

// uuidPattern matches the canonical textual UUID form with a version nibble of
// 1–5 and an RFC 4122 variant nibble.
var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Lane seeds and multipliers for the two 32-bit mixing accumulators.
const (
	seed1 uint32 = 0xdeadbeef
	seed2 uint32 = 0x41c6ce57

	mul1 uint32 = 2654435761
	mul2 uint32 = 1597334677

	avalanche1 uint32 = 2246822507
	avalanche2 uint32 = 3266489909
)

// IsUUID reports whether s is already a valid UUID string that [Normalize]
// would return unchanged.
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// Normalize returns id unchanged when it is already a valid UUID. Otherwise it
// returns a deterministic version-4-shaped UUID derived from id.
//
// Normalize is a pure function: it performs no I/O and keeps no state.
func Normalize(id string) string {
	if IsUUID(id) {
		return id
	}
	return uuid.UUID(Sum(id)).String()
}

// Sum returns the 16 raw bytes [Normalize] formats for a non-UUID input, with
// the version and variant bits already applied.
func Sum(id string) [16]byte {
	h1, h2 := seed1, seed2
	for _, c := range utf16.Encode([]rune(id)) {
		h1 = (h1 ^ uint32(c)) * mul1
		h2 = (h2 ^ uint32(c)) * mul2
	}

	h1 = ((h1 ^ h1>>16) * avalanche1) ^ ((h2 ^ h2>>13) * avalanche2)
	h2 = ((h2 ^ h2>>16) * avalanche1) ^ ((h1 ^ h1>>13) * avalanche2)

	var b [16]byte
	binary.BigEndian.PutUint32(b[0:4], h1)
	binary.BigEndian.PutUint32(b[4:8], h2)
	binary.BigEndian.PutUint32(b[8:12], h1^h2)
	binary.BigEndian.PutUint32(b[12:16], bits.RotateLeft32(h1, 13)^bits.RotateLeft32(h2, -7))

	b[6] = b[6]&0x0f | 0x40 // version 4
	b[8] = b[8]&0x3f | 0x80 // variant 10xx
	return b
}
