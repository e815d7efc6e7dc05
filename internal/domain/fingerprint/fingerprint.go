// Package fingerprint holds the bit-set representation of structural fingerprints.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is an immutable set of "on" fingerprint bits.
// Iteration is always ascending so clause generation stays deterministic.
type Set struct {
	bits *roaring.Bitmap
}

// New creates a Set from bit positions. Duplicates collapse.
func New(bits ...uint32) Set {
	bm := roaring.New()
	bm.AddMany(bits)
	bm.RunOptimize()
	return Set{bits: bm}
}

// FromInts creates a Set from signed bit positions, rejecting negatives.
func FromInts(bits []int) (Set, error) {
	out := make([]uint32, 0, len(bits))
	for _, b := range bits {
		if b < 0 {
			return Set{}, fmt.Errorf("fingerprint bit must be non-negative, got %d", b)
		}
		out = append(out, uint32(b))
	}
	return New(out...), nil
}

// Parse decodes the comma-separated form produced by String.
func Parse(s string) (Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return New(), nil
	}
	parts := strings.Split(s, ",")
	bits := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Set{}, fmt.Errorf("parse fingerprint bit %q: %w", p, err)
		}
		bits = append(bits, uint32(v))
	}
	return New(bits...), nil
}

// Len returns the number of set bits.
func (s Set) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.GetCardinality())
}

// IsEmpty reports whether no bit is set.
func (s Set) IsEmpty() bool { return s.Len() == 0 }

// Bits returns the set bits in ascending order.
func (s Set) Bits() []uint32 {
	if s.bits == nil {
		return nil
	}
	return s.bits.ToArray()
}

// Contains reports whether bit is set.
func (s Set) Contains(bit uint32) bool {
	return s.bits != nil && s.bits.Contains(bit)
}

// IntersectionLen returns |s ∩ other|.
func (s Set) IntersectionLen(other Set) int {
	if s.bits == nil || other.bits == nil {
		return 0
	}
	return int(s.bits.AndCardinality(other.bits))
}

// Equal reports whether both sets hold the same bits.
func (s Set) Equal(other Set) bool {
	if s.IsEmpty() || other.IsEmpty() {
		return s.IsEmpty() && other.IsEmpty()
	}
	return s.bits.Equals(other.bits)
}

// Strings returns the bits as decimal strings, ascending.
func (s Set) Strings() []string {
	bits := s.Bits()
	out := make([]string, len(bits))
	for i, b := range bits {
		out[i] = strconv.FormatUint(uint64(b), 10)
	}
	return out
}

// String encodes the set as ascending comma-separated bits ("1,5,9").
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}
