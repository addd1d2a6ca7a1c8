package bank

import "math/rand"

// ShuffledOptions returns the question's options in a pseudo-random order
// seeded by the question fingerprint. The ordering is identical on every
// call for the same question, within and across processes, so a previously
// selected answer can be re-located by value after a re-render. Distinct
// fingerprints get independent orderings.
func ShuffledOptions(q Question) []string {
	out := make([]string, len(q.Options))
	copy(out, q.Options)
	rng := rand.New(rand.NewSource(fingerprintSeed(q)))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
