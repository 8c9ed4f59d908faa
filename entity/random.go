package entity

import (
	"math/rand/v2"
	"strconv"

	"github.com/zeebo/xxh3"
)

// RandomStream is a seedable, forkable source of [0,1) doubles. Forking
// is deterministic: the child's seed is derived by mixing the parent's
// seed string with the child's name through a fast structural hash, so
// the same (parent seed, child name) pair always yields the same child
// stream and entity trees stay reproducible.
type RandomStream struct {
	seed string
	rng  *rand.ChaCha8
}

func seedFrom(s string) [32]byte {
	var key [32]byte
	h := xxh3.HashString(s)
	for i := 0; i < 4; i++ {
		v := h
		for j := 0; j < 8; j++ {
			key[i*8+j] = byte(v)
			v >>= 8
		}
		h = xxh3.HashString(s + strconv.Itoa(i))
	}
	return key
}

// Seeded creates a stream deterministically derived from seed.
func Seeded(seed string) *RandomStream {
	key := seedFrom(seed)
	return &RandomStream{seed: seed, rng: rand.NewChaCha8(key)}
}

// NextDouble returns the next pseudo-random value in [0, 1).
func (r *RandomStream) NextDouble() float64 {
	return float64(r.rng.Uint64()>>11) / (1 << 53)
}

// Fork derives a deterministic child stream by mixing this stream's
// seed with name.
func (r *RandomStream) Fork(name string) *RandomStream {
	return Seeded(r.seed + "\x00" + name)
}

// Seed returns the string seed this stream was constructed from, used
// when persisting rand_seed in entity metadata.
func (r *RandomStream) Seed() string {
	return r.seed
}
