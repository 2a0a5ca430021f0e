package template

import (
	"encoding/binary"
	"math/rand"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/minio/highwayhash"
)

// streamKey derives a deterministic 64-bit seed from (seed, operation
// name, pointer within response). Every faker/random token gets its
// own independent stream keyed this way, so two tokens at different
// response locations never perturb each other's output regardless of
// expansion order (spec.md §4.3's "byte-identical responses across
// replays" guarantee).
//
// highwayhash is already wired for the proxy layer's request-key
// hashing; reusing it here means deterministic template seeding and
// replay-key hashing share one vetted, keyed hash function instead of
// two different ones doing the same job.
var streamHashKey = [32]byte{} // zero key: determinism does not require secrecy here

func streamSeed(seed int64, operationName, pointer string) uint64 {
	buf := make([]byte, 8, 8+len(operationName)+len(pointer)+2)
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	buf = append(buf, operationName...)
	buf = append(buf, 0)
	buf = append(buf, pointer...)
	buf = append(buf, 0)
	return highwayhash.Sum64(buf, streamHashKey[:])
}

// streamFor returns a fresh *rand.Rand and *gofakeit.Faker seeded from
// the same derived stream key, for use by exactly one token evaluation.
func streamFor(seed int64, operationName, pointer string) (*rand.Rand, *gofakeit.Faker) {
	s := streamSeed(seed, operationName, pointer)
	rng := rand.New(rand.NewSource(int64(s)))
	faker := gofakeit.New(s)
	return rng, faker
}
