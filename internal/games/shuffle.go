package games

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed returns a high-entropy seed from crypto/rand. Storing it with the
// game lets a seat shuffle be replayed.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Shuffle returns a Fisher–Yates permutation of a's slots. a is not modified.
func Shuffle(a Assignment, rng *rand.Rand) Assignment {
	out := a
	out.Slots = make([]Slot, len(a.Slots))
	copy(out.Slots, a.Slots)
	for i := len(out.Slots) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out.Slots[i], out.Slots[j] = out.Slots[j], out.Slots[i]
	}
	return out
}

// ShuffleSeeded is Shuffle with a generator built from seed.
func ShuffleSeeded(a Assignment, seed int64) Assignment {
	return Shuffle(a, rand.New(rand.NewSource(seed)))
}
