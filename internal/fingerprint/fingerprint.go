// Package fingerprint implements component A: a pure function from a
// GenerationRequest to a deterministic 256-bit cache key. It is grounded in
// the teacher's internal/cache/keygen.go field-ordered serialization, but
// hardened per spec §4.A: a fixed field order, explicit length prefixes
// instead of delimiter characters, 6-decimal quantization of every real
// value, and a prepended schema-version byte so cache entries can be
// invalidated en masse by bumping SchemaVersion.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/blueberrycongee/agentgate/pkg/types"
)

// quantum is the fixed-point scale used to round real values to 6 decimal
// places before hashing, so float representation noise never produces a
// spurious cache miss (or, worse, a false collision).
const quantum = 1e6

// Fingerprint is the 256-bit digest, rendered as a lowercase hex string.
type Fingerprint string

// Compute derives the fingerprint for req under the given schema version.
// Two requests differing only in RequestID or CachePolicy always produce the
// same fingerprint (invariant 1, spec §8); any field that influences
// generation changes it.
func Compute(schemaVersion byte, req *types.GenerationRequest) Fingerprint {
	h := sha256.New()
	h.Write([]byte{schemaVersion})

	writeString(h, req.Model)
	writeString(h, req.Prompt)
	writeQuantized(h, req.EffectiveTemperature())
	writeInt64(h, int64(req.EffectiveMaxTokens()))
	writeQuantized(h, req.EffectiveTopP())

	if req.TopK != nil {
		writeByte(h, 1)
		writeInt64(h, int64(*req.TopK))
	} else {
		writeByte(h, 0)
	}

	if req.RepeatPenalty != nil {
		writeByte(h, 1)
		writeQuantized(h, *req.RepeatPenalty)
	} else {
		writeByte(h, 0)
	}

	writeInt64(h, int64(len(req.Stop)))
	for _, s := range req.Stop {
		writeString(h, s)
	}

	if req.Seed != nil {
		writeByte(h, 1)
		writeInt64(h, *req.Seed)
	} else {
		writeByte(h, 0)
	}

	writeProfile(h, req.AgentProfile)

	sum := h.Sum(nil)
	return Fingerprint(hex.EncodeToString(sum))
}

func writeProfile(h hashWriter, p *types.AgentProfile) {
	if p == nil {
		writeByte(h, 0)
		return
	}
	writeByte(h, 1)

	writeInt64(h, int64(p.AgentID))
	writeString(h, p.Name)
	if p.Age != nil {
		writeByte(h, 1)
		writeInt64(h, int64(*p.Age))
	} else {
		writeByte(h, 0)
	}
	writeString(h, p.Occupation)

	// Personality: fixed canonical order, absence encoded explicitly.
	for _, trait := range types.OrderedTraits {
		if v, ok := p.Personality.Get(trait); ok {
			writeByte(h, 1)
			writeQuantized(h, v)
		} else {
			writeByte(h, 0)
		}
	}

	// Mental state: fixed canonical order. current_emotion is a string, the
	// rest are quantized reals. A numeric field whose value does not parse
	// as a number is hashed as its raw string under a distinct tag.
	for _, field := range types.OrderedMentalStateFields {
		v, ok := p.MentalState.Get(field)
		if !ok {
			writeByte(h, 0)
			continue
		}
		if field != types.FieldCurrentEmotion {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				writeByte(h, 2)
				writeQuantized(h, f)
				continue
			}
		}
		writeByte(h, 1)
		writeString(h, v)
	}

	// Extra traits: sorted by key for determinism, since map iteration order
	// is not stable.
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeInt64(h, int64(len(keys)))
	for _, k := range keys {
		writeString(h, k)
		writeQuantized(h, p.Extra[k])
	}

	writeString(h, p.Context)
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func writeByte(h hashWriter, b byte) {
	_, _ = h.Write([]byte{b})
}

func writeInt64(h hashWriter, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, _ = h.Write(buf[:])
}

// writeQuantized rounds v to 6 decimal places and writes it as a fixed-width
// integer, so e.g. 0.80 and 0.8000001 collapse to the same bytes while 0.80
// and 0.81 never do (scenario S3).
func writeQuantized(h hashWriter, v float64) {
	q := int64(v*quantum + sign(v)*0.5)
	writeInt64(h, q)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// writeString length-prefixes s so that concatenation ambiguity ("ab"+"c" vs
// "a"+"bc") can never produce a collision.
func writeString(h hashWriter, s string) {
	writeInt64(h, int64(len(s)))
	_, _ = h.Write([]byte(s))
}
