package service

import (
	"fmt"
	"math"
)

// goldenAngle spreads successive hues so that neighbouring layers never get
// similar colors.
const goldenAngle = 137.508

// paletteColor returns the generated color for the n-th layer. The first one
// is DefaultColor.
func paletteColor(n int) string {
	if n == 0 {
		return DefaultColor
	}
	hue := math.Mod(28+float64(n)*goldenAngle, 360)
	return hslHex(hue, 1, 0.5)
}

// hslHex converts hue (degrees), saturation and lightness (0-1) to #rrggbb.
func hslHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to8 := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", to8(r), to8(g), to8(b))
}
