// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package rngscope provides explicitly passed, reproducible random streams and
// the scoped seeding used by the nested Monte Carlo and bootstrap loops.
//
// A Stream is never shared between goroutines. Parallel work receives
// sub-streams derived from the task index, so results do not depend on how
// many workers run the tasks.
//
// The Monte Carlo driver and the bootstrap engine only use the package-level
// WithIsolatedSeed and hand streams down explicitly. Scope, with Snapshot and
// Restore underneath it, is for sequential callers that keep one current
// stream and need a seeded block that leaves it exactly where it was.
// Nothing in the simulation pipeline holds a Scope.
package rngscope

import (
	"encoding"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Algorithm names a deterministic stream algorithm.
type Algorithm string

const (
	// LEcuyerCMRG is MRG32k3a with 2^127-step stream jumps.
	LEcuyerCMRG Algorithm = "lecuyer-cmrg"
	// PCG is math/rand/v2's PCG, sub-streams are reseeded from a splitmix hash.
	PCG Algorithm = "pcg"
	// ChaCha8 is math/rand/v2's ChaCha8, sub-streams are reseeded from a splitmix hash.
	ChaCha8 Algorithm = "chacha8"
)

// DefaultAlgorithm is used when no algorithm is named.
const DefaultAlgorithm = LEcuyerCMRG

// Algorithms lists the supported algorithm names.
func Algorithms() []Algorithm {
	return []Algorithm{LEcuyerCMRG, PCG, ChaCha8}
}

// RandomStreamError reports an unsupported algorithm or an unusable stream.
type RandomStreamError struct {
	Algorithm Algorithm
	Reason    string
}

func (e *RandomStreamError) Error() string {
	return fmt.Sprintf("random stream %q: %s", string(e.Algorithm), e.Reason)
}

// ParseAlgorithm resolves a configured algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, a := range Algorithms() {
		if a == alg {
			return a, nil
		}
	}
	return "", &RandomStreamError{Algorithm: alg, Reason: fmt.Sprintf("unsupported algorithm, options: %v", Algorithms())}
}

// Stream is a seeded random stream. It embeds *rand.Rand, so it can also be
// handed to gonum distributions as their rand.Source.
type Stream struct {
	*rand.Rand
	alg  Algorithm
	seed uint64
	src  rand.Source
	// start is the MRG state at creation, sub-streams jump from it
	start *mrg32k3a
}

// New creates a stream of the named algorithm seeded with seed.
func New(alg Algorithm, seed uint64) (*Stream, error) {
	switch alg {
	case LEcuyerCMRG:
		g := newMRG32k3a(seed)
		return fromMRG(seed, g), nil
	case PCG:
		sm := seed
		src := rand.NewPCG(splitmix64(&sm), splitmix64(&sm))
		return &Stream{Rand: rand.New(src), alg: alg, seed: seed, src: src}, nil
	case ChaCha8:
		sm := seed
		var key [32]byte
		for i := 0; i < 4; i++ {
			v := splitmix64(&sm)
			for b := 0; b < 8; b++ {
				key[i*8+b] = byte(v >> (8 * b))
			}
		}
		src := rand.NewChaCha8(key)
		return &Stream{Rand: rand.New(src), alg: alg, seed: seed, src: src}, nil
	default:
		return nil, &RandomStreamError{Algorithm: alg, Reason: "unsupported algorithm"}
	}
}

func fromMRG(seed uint64, g *mrg32k3a) *Stream {
	return &Stream{Rand: rand.New(g), alg: LEcuyerCMRG, seed: seed, src: g, start: g.clone()}
}

// Algorithm returns the stream's algorithm name.
func (s *Stream) Algorithm() Algorithm { return s.alg }

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() uint64 { return s.seed }

// Substreams returns n independent streams derived from this stream's seed.
// Stream i is the same whatever has been drawn from s, and the same for every
// n > i. For L'Ecuyer-CMRG stream i starts i+1 jumps after s.
func (s *Stream) Substreams(n int) []*Stream {
	out := make([]*Stream, n)
	if s.alg == LEcuyerCMRG {
		g := s.start
		for i := 0; i < n; i++ {
			g = g.jump()
			out[i] = fromMRG(s.seed, g.clone())
		}
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = s.Substream(i)
	}
	return out
}

// Substream returns the i-th derived stream (see Substreams).
func (s *Stream) Substream(i int) *Stream {
	if s.alg == LEcuyerCMRG {
		g := s.start
		for j := 0; j <= i; j++ {
			g = g.jump()
		}
		return fromMRG(s.seed, g.clone())
	}
	sm := s.seed + uint64(i+1)*0xd1342543de82ef95
	child, err := New(s.alg, splitmix64(&sm))
	if err != nil {
		// s was built by New, so its algorithm is known
		panic(err)
	}
	return child
}

// Snapshot returns the serialized generator state.
func (s *Stream) Snapshot() ([]byte, error) {
	m, ok := s.src.(encoding.BinaryMarshaler)
	if !ok {
		return nil, &RandomStreamError{Algorithm: s.alg, Reason: "state cannot be serialized"}
	}
	return m.MarshalBinary()
}

// Restore loads a state produced by Snapshot.
func (s *Stream) Restore(state []byte) error {
	u, ok := s.src.(encoding.BinaryUnmarshaler)
	if !ok {
		return &RandomStreamError{Algorithm: s.alg, Reason: "state cannot be restored"}
	}
	if err := u.UnmarshalBinary(state); err != nil {
		return &RandomStreamError{Algorithm: s.alg, Reason: err.Error()}
	}
	return nil
}

// WithIsolatedSeed runs body with a fresh stream of alg seeded with seed.
// Nothing outside body can observe or advance that stream.
func WithIsolatedSeed(alg Algorithm, seed uint64, body func(*Stream) error) error {
	s, err := New(alg, seed)
	if err != nil {
		return err
	}
	return body(s)
}

// Scope holds one current stream and swaps it out while an isolated body runs.
type Scope struct {
	mu      sync.Mutex
	current *Stream
}

// NewScope creates a scope whose current stream is s.
func NewScope(s *Stream) *Scope {
	return &Scope{current: s}
}

// Current returns the scope's current stream.
func (sc *Scope) Current() *Stream {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

// WithIsolatedSeed installs a fresh stream seeded with seed as the current
// stream, runs body, and restores the previous stream and its exact state on
// every exit path, including a panic in body.
func (sc *Scope) WithIsolatedSeed(alg Algorithm, seed uint64, body func(*Stream) error) (err error) {
	next, err := New(alg, seed)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	prev := sc.current
	var saved []byte
	if prev != nil {
		if saved, err = prev.Snapshot(); err != nil {
			sc.mu.Unlock()
			return err
		}
	}
	sc.current = next
	sc.mu.Unlock()

	defer func() {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		sc.current = prev
		if prev != nil {
			if rerr := prev.Restore(saved); rerr != nil && err == nil {
				err = rerr
			}
		}
	}()

	return body(next)
}
