package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/exp/constraints"
)

// SeedLength is the length of a SeededRng seed.
const SeedLength = chacha20.KeySize

// Seed describes the 32-byte value a SeededRng is derived from.
type Seed [SeedLength]byte

// String returns the seed as lowercase hex.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// ParseSeedHex parses a 64 character hex string into a Seed. An optional 0x prefix is accepted.
func ParseSeedHex(s string) (Seed, error) {
	var seed Seed
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return seed, errors.Wrap(err, "seed is not valid hex")
	}
	if len(b) != SeedLength {
		return seed, errors.Errorf("seed must be %d bytes, got %d", SeedLength, len(b))
	}
	copy(seed[:], b)
	return seed, nil
}

// alphanumeric is the alphabet used by SeededRng.String.
const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SeededRng is a deterministic generator producing a ChaCha20 keystream keyed by a 32-byte seed. Given the same seed
// and the same sequence of draws, it produces the same values. It is not safe for concurrent use: every worker
// owns its own.
type SeededRng struct {
	// seed is the seed the current keystream was derived from.
	seed Seed

	// cipher produces the keystream.
	cipher *chacha20.Cipher
}

// FromSeed creates a SeededRng from the given seed.
func FromSeed(seed Seed) *SeededRng {
	r := &SeededRng{}
	r.reseed(seed)
	return r
}

// FromEntropy creates a SeededRng from a seed read from the operating system's entropy source.
func FromEntropy() (*SeededRng, error) {
	var seed Seed
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read seed entropy")
	}
	return FromSeed(seed), nil
}

// DeriveWorkerSeed derives an independent seed for the worker at index from a master seed, as
// sha256(master || sha256(le64(index))).
func DeriveWorkerSeed(master Seed, index int) Seed {
	var indexBytes [8]byte
	binary.LittleEndian.PutUint64(indexBytes[:], uint64(index))
	indexHash := sha256.Sum256(indexBytes[:])

	h := sha256.New()
	h.Write(master[:])
	h.Write(indexHash[:])
	var seed Seed
	copy(seed[:], h.Sum(nil))
	return seed
}

// ForWorker creates the SeededRng for the worker at index of a campaign with the given master seed.
func ForWorker(master Seed, index int) *SeededRng {
	return FromSeed(DeriveWorkerSeed(master, index))
}

// reseed replaces the generator state with a fresh keystream keyed by seed.
func (r *SeededRng) reseed(seed Seed) {
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are fixed by the types above
		panic(errors.Wrap(err, "failed to initialize generator keystream"))
	}
	r.seed = seed
	r.cipher = cipher
}

// Reset restarts the generator from seed, as if it had been created by FromSeed.
func (r *SeededRng) Reset(seed Seed) {
	r.reseed(seed)
}

// CurrentSeed returns the seed of the current keystream. It is recorded alongside findings so the iteration that
// produced them can be replayed.
func (r *SeededRng) CurrentSeed() Seed {
	return r.seed
}

// SeedHex returns the current seed as lowercase hex.
func (r *SeededRng) SeedHex() string {
	return r.seed.String()
}

// Rotate replaces the generator state with a new seed derived from the current seed alone: the first 32 bytes of a
// fresh keystream keyed by it. Draws made since the last rotation do not affect the result, so the seed used by
// any iteration can be recomputed from the worker seed and the iteration count.
func (r *SeededRng) Rotate() {
	r.reseed(NextSeed(r.seed))
}

// NextSeed returns the seed that Rotate moves to from seed.
func NextSeed(seed Seed) Seed {
	var next Seed
	FromSeed(seed).Fill(next[:])
	return next
}

// SeedAfterRotations returns the seed reached after rotating n times from seed.
func SeedAfterRotations(seed Seed, n int) Seed {
	for i := 0; i < n; i++ {
		seed = NextSeed(seed)
	}
	return seed
}

// Fill overwrites buf with keystream bytes.
func (r *SeededRng) Fill(buf []byte) {
	clear(buf)
	r.cipher.XORKeyStream(buf, buf)
}

// Bytes returns n keystream bytes.
func (r *SeededRng) Bytes(n int) []byte {
	buf := make([]byte, n)
	r.Fill(buf)
	return buf
}

// Uint64 returns a uniformly distributed uint64.
func (r *SeededRng) Uint64() uint64 {
	var buf [8]byte
	r.Fill(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// Bool returns a uniformly distributed bool.
func (r *SeededRng) Bool() bool {
	return r.Uint64()&1 == 1
}

// Uint64n returns a uniformly distributed integer in [0, n), using rejection sampling to avoid modulo bias. Returns
// an error if n is zero.
func (r *SeededRng) Uint64n(n uint64) (uint64, error) {
	if n == 0 {
		return 0, errors.New("cannot draw from an empty range")
	}
	// Values below threshold would over-represent small results
	threshold := -n % n
	for {
		v := r.Uint64()
		if v >= threshold {
			return v % n, nil
		}
	}
}

// Intn returns a uniformly distributed int in [0, n). It panics if n <= 0.
func (r *SeededRng) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	v, _ := r.Uint64n(uint64(n))
	return int(v)
}

// DrawRange returns a uniformly distributed integer in [lo, hi). Returns an error if the range is empty.
func DrawRange[T constraints.Integer](r *SeededRng, lo T, hi T) (T, error) {
	if hi <= lo {
		return lo, errors.Errorf("cannot draw from the empty range [%v, %v)", lo, hi)
	}
	// Two's complement arithmetic makes the span correct for signed and unsigned types alike
	v, err := r.Uint64n(uint64(hi) - uint64(lo))
	if err != nil {
		return lo, err
	}
	return T(uint64(lo) + v), nil
}

// String returns an alphanumeric string of length n.
func (r *SeededRng) String(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = alphanumeric[r.Intn(len(alphanumeric))]
	}
	return string(out)
}
