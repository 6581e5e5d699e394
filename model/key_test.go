package model

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var safeProjection = regexp.MustCompile(`^[A-Za-z0-9._#-]+$`)

// TestKey_Projection_Deterministic produces the same projection for equal keys.
func TestKey_Projection_Deterministic(t *testing.T) {
	k1 := NewKey("https://cdn.example.com/a.jpg", NewSize(100, 80))
	k2 := NewKey("https://cdn.example.com/a.jpg", NewSize(100, 80))

	require.Equal(t, k1, k2)
	require.Equal(t, k1.Projection(), k2.Projection())
	require.Equal(t, k1.Hash(), k2.Hash())
}

// TestKey_Projection_VariantMatters separates variants of the same identity.
func TestKey_Projection_VariantMatters(t *testing.T) {
	k1 := NewKey("https://cdn.example.com/a.jpg", NewSize(100, 80))
	k2 := NewKey("https://cdn.example.com/a.jpg", NewSize(200, 160))

	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k1.Projection(), k2.Projection())
	require.NotEqual(t, k1.Hash(), k2.Hash())
}

// TestKey_Projection_FilesystemSafe normalizes non-alphanumeric characters.
func TestKey_Projection_FilesystemSafe(t *testing.T) {
	k := NewKey("https://cdn.example.com/img?id=1&w=2 /../x", NewSize(10.5, 20))
	p := k.Projection()

	require.Regexp(t, safeProjection, p)
	require.NotContains(t, p, "/")
	require.True(t, strings.HasPrefix(p, "https___cdn.example.com_img_id_1_w_2__.._x#10.5x20-"))
}

// TestKey_Projection_NormalizationCollision keeps identities distinct when normalization merges them.
func TestKey_Projection_NormalizationCollision(t *testing.T) {
	k1 := NewKey("a/b", NewPage(1, 20))
	k2 := NewKey("a?b", NewPage(1, 20))

	require.NotEqual(t, k1.Projection(), k2.Projection())
}

// TestKey_Projection_LongIdentity truncates the readable part but stays unique.
func TestKey_Projection_LongIdentity(t *testing.T) {
	long := strings.Repeat("x", 500)
	k1 := NewKey(long+"1", NewSize(1, 1))
	k2 := NewKey(long+"2", NewSize(1, 1))

	require.Less(t, len(k1.Projection()), 200)
	require.NotEqual(t, k1.Projection(), k2.Projection())
}

// TestKey_Projection_NegativeZero projects keys equal under == identically.
func TestKey_Projection_NegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)

	a := Key{Identity: "https://cdn/a.png", Variant: Size{Width: negZero, Height: 10}}
	b := Key{Identity: "https://cdn/a.png", Variant: Size{Width: 0, Height: 10}}
	require.True(t, a == b)
	require.Equal(t, a.Projection(), b.Projection())
	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, "0x10", a.Variant.String())

	c := NewKey("https://cdn/a.png", NewSize(negZero, negZero))
	require.False(t, math.Signbit(c.Variant.(Size).Width))
	require.Equal(t, NewKey("https://cdn/a.png", NewSize(0, 0)).Projection(), c.Projection())
}

// TestKey_Validate rejects empty identity and nil variant.
func TestKey_Validate(t *testing.T) {
	require.NoError(t, NewKey("id", NewPage(0, 10)).Validate())
	require.ErrorIs(t, NewKey("", NewPage(0, 10)).Validate(), ErrInvalidInput)
	require.ErrorIs(t, NewKey("id", nil).Validate(), ErrInvalidInput)
}

// TestKey_AsMapKey uses keys with interface variants as map keys.
func TestKey_AsMapKey(t *testing.T) {
	m := map[Key]int{}
	m[NewKey("a", NewSize(1, 2))] = 1
	m[NewKey("a", NewSize(1, 2))]++
	m[NewKey("a", NewPage(1, 2))] = 10

	require.Len(t, m, 2)
	require.Equal(t, 2, m[NewKey("a", NewSize(1, 2))])
}

// TestSize_Pixels scales the longer side and clamps to one pixel.
func TestSize_Pixels(t *testing.T) {
	require.Equal(t, 300, NewSize(150, 100).Pixels(2))
	require.Equal(t, 300, NewSize(100, 150).Pixels(2))
	require.Equal(t, 1, NewSize(0, 0).Pixels(3))
}

// TestCancelled matches both ErrCancelled and context.Canceled.
func TestCancelled(t *testing.T) {
	err := Cancelled(nil)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	err = Cancelled(context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Same(t, err, Cancelled(err))
	require.True(t, IsCancellation(err))
	require.False(t, IsCancellation(errors.New("boom")))
}
