package engine

import "math/rand/v2"

// Logical RNG stream purposes. Streams are keyed by (run seed, step, purpose,
// row), never by worker, so results do not depend on how rows are chunked
// across workers.
const (
	streamSeeding = iota
	streamRow
	streamCommit
)

// splitmix64 is the finalizer used to mix stream keys into PCG seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// streamRNG derives an independent deterministic generator for one logical
// stream of one step.
func streamRNG(seed, step uint64, purpose int, row uint64) *rand.Rand {
	hi := splitmix64(seed ^ splitmix64(step))
	lo := splitmix64(uint64(purpose)<<32 ^ splitmix64(row) ^ seed)
	return rand.New(rand.NewPCG(hi, lo))
}
