package bank

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint derives the stable content key for a question. Two records with
// the same chapter, section and text are the same logical question and share
// a fingerprint; the digest carries no salt so keys survive restarts.
func Fingerprint(q Question) string {
	sum := md5.Sum([]byte(q.Chapter + "|" + q.Section + "|" + q.Text))
	return hex.EncodeToString(sum[:])
}

// fingerprintSeed folds the question digest into a PRNG seed for the
// per-question option shuffle.
func fingerprintSeed(q Question) int64 {
	sum := md5.Sum([]byte(q.Chapter + "|" + q.Section + "|" + q.Text))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
