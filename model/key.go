package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// maxIdentityInProjection bounds the readable part of a projection so the
// resulting file name stays well under common NAME_MAX limits.
const maxIdentityInProjection = 96

// Variant parameterizes a logical resource (target size, page window, ...).
// Implementations must be comparable so Key can be used as a map key.
type Variant interface {
	String() string
}

// Key identifies one cached variant of a resource.
type Key struct {
	Identity string
	Variant  Variant
}

func NewKey(identity string, variant Variant) Key {
	return Key{Identity: identity, Variant: variant}
}

// Validate reports ErrInvalidInput for keys that can not address any resource.
func (k Key) Validate() error {
	if k.Identity == "" {
		return fmt.Errorf("%w: empty identity", ErrInvalidInput)
	}
	if k.Variant == nil {
		return fmt.Errorf("%w: nil variant for %q", ErrInvalidInput, k.Identity)
	}
	return nil
}

// Projection returns a deterministic, filesystem-safe string for the key.
// The trailing 128-bit hash keeps projections distinct even when normalization
// or truncation of the identity would merge two keys.
func (k Key) Projection() string {
	variant := k.variantString()

	safe := normalize(k.Identity)
	if len(safe) > maxIdentityInProjection {
		safe = safe[:maxIdentityInProjection]
	}

	sum := k.hash128(variant).Bytes()
	return safe + "#" + normalize(variant) + "-" + hex.EncodeToString(sum[:])
}

// Hash is the 64-bit map key of the projection.
func (k Key) Hash() uint64 {
	return xxh3.HashString(k.Projection())
}

func (k Key) String() string {
	return k.Identity + "#" + k.variantString()
}

func (k Key) variantString() string {
	if k.Variant == nil {
		return ""
	}
	return k.Variant.String()
}

func (k Key) hash128(variant string) xxh3.Uint128 {
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(k.Identity)))

	h := xxh3.New()
	_, _ = h.Write(size[:])
	_, _ = h.WriteString(k.Identity)
	_, _ = h.WriteString(variant)
	return h.Sum128()
}

// normalize replaces every byte outside [A-Za-z0-9._-] with '_'.
func normalize(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
