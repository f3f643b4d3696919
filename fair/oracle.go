// Package fair implements the provably-fair seed protocol. Each round's
// outcome is fixed before betting opens: the server commits to a random seed
// by publishing its SHA-256 hash, and the crash point is derived
// deterministically from the seed material. After the reveal grace period a
// verifier can rehash the seed and recompute the crash point.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"

	"crashd/domain/apperr"
)

// RoundSeed holds the per-round seed material and derived crash point.
// CrashPoint is a multiplier in hundredths.
type RoundSeed struct {
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          int64
	CrashPoint     int64
}

// Oracle generates seed material and derives crash points under a configured
// house edge expressed in basis points (100 = 1%).
type Oracle struct {
	edgeBps int64
}

// NewOracle creates an oracle. edgeBps must lie in [0, 10000).
func NewOracle(edgeBps int64) (*Oracle, error) {
	if edgeBps < 0 || edgeBps >= 10000 {
		return nil, fmt.Errorf("house edge out of range: %d bps", edgeBps)
	}
	return &Oracle{edgeBps: edgeBps}, nil
}

// NextRound produces the seed material for a round. nonce is the round
// number, which binds the derivation to the round sequence. Randomness
// acquisition failure is surfaced as FailedPrecondition so the engine
// pauses instead of producing a biased round.
func (o *Oracle) NextRound(nonce int64) (*RoundSeed, error) {
	serverSeed, err := randomHex(32)
	if err != nil {
		return nil, apperr.Wrap(apperr.FailedPrecondition, "randomness unavailable", err)
	}
	clientSeed, err := randomHex(8)
	if err != nil {
		return nil, apperr.Wrap(apperr.FailedPrecondition, "randomness unavailable", err)
	}
	return &RoundSeed{
		ServerSeed:     serverSeed,
		ServerSeedHash: HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		CrashPoint:     DeriveCrashPoint(serverSeed, clientSeed, nonce, o.edgeBps),
	}, nil
}

// HashSeed returns the hex SHA-256 commitment of a server seed.
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// DeriveCrashPoint computes the crash multiplier in hundredths from the seed
// material. The HMAC-SHA-256 of "clientSeed:nonce" keyed by the server seed
// is truncated to its leading 52 bits X, and the multiplier is
//
//	max(1.00, floor((1-h) * 2^52 * 100 / (2^52 - X)) / 100)
//
// with h the house edge. X is uniform over [0, 2^52), which makes
// P(crash >= m) = (1-h)/m and yields a long-run house margin of h.
func DeriveCrashPoint(serverSeed, clientSeed string, nonce, edgeBps int64) int64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(mac, "%s:%d", clientSeed, nonce)
	digest := mac.Sum(nil)

	x := binary.BigEndian.Uint64(digest[:8]) >> 12 // leading 52 bits
	return crashFromBits(x, edgeBps)
}

// crashFromBits maps a uniform 52-bit integer to a crash multiplier in
// hundredths. The numerator (10000-edgeBps)*2^52 needs 128-bit headroom.
func crashFromBits(x uint64, edgeBps int64) int64 {
	const e = uint64(1) << 52
	hi, lo := bits.Mul64(uint64(10000-edgeBps), e)
	den := (e - x) * 100
	q, _ := bits.Div64(hi, lo, den)
	if q < 100 {
		return 100
	}
	return int64(q)
}

// Verify checks a revealed round: the seed must rehash to the published
// commitment and the derivation must reproduce the stored crash point.
func Verify(serverSeed, serverSeedHash, clientSeed string, nonce, edgeBps, crashPoint int64) bool {
	if HashSeed(serverSeed) != serverSeedHash {
		return false
	}
	return DeriveCrashPoint(serverSeed, clientSeed, nonce, edgeBps) == crashPoint
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
