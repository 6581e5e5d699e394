package model

import (
	"math"
	"strconv"
)

// Size is a target rendering size in logical points.
type Size struct {
	Width  float64
	Height float64
}

func NewSize(width, height float64) Size {
	return Size{Width: posZero(width), Height: posZero(height)}
}

// MaxSide is the longer side of the size.
func (s Size) MaxSide() float64 {
	return math.Max(s.Width, s.Height)
}

// Pixels returns the longer side in device pixels for the given display scale, never below 1.
func (s Size) Pixels(scale float64) int {
	return max(int(s.MaxSide()*scale), 1)
}

// String prints -0 as 0 so sizes equal under == always share a projection.
func (s Size) String() string {
	return strconv.FormatFloat(posZero(s.Width), 'g', -1, 64) + "x" + strconv.FormatFloat(posZero(s.Height), 'g', -1, 64)
}

func posZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

// Page is a window of a paginated collection.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	return Page{Number: number, Size: size}
}

func (p Page) String() string {
	return "p" + strconv.Itoa(p.Number) + "s" + strconv.Itoa(p.Size)
}
