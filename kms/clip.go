package kms

import "image"

// ClipPointer places a width x height cursor image with hotspot
// (hotX, hotY) at (x, y) on a outW x outH output and clips it to the
// screen. dst is the visible part in output coordinates and src the
// matching part of the image. Each edge is clamped on its own, the
// cursor can stick out on one side only. A cursor entirely off screen
// yields empty rectangles.
func ClipPointer(x, y, hotX, hotY, width, height, outW, outH int) (dst, src image.Rectangle) {
	dx0, dy0 := x-hotX, y-hotY
	dx1, dy1 := dx0+width, dy0+height
	sx0, sy0, sx1, sy1 := 0, 0, width, height

	if dx0 < 0 {
		sx0 -= dx0
		dx0 = 0
	}
	if dy0 < 0 {
		sy0 -= dy0
		dy0 = 0
	}
	if dx1 > outW {
		sx1 -= dx1 - outW
		dx1 = outW
	}
	if dy1 > outH {
		sy1 -= dy1 - outH
		dy1 = outH
	}

	if dx1 <= dx0 || dy1 <= dy0 {
		return image.Rectangle{}, image.Rectangle{}
	}
	return image.Rect(dx0, dy0, dx1, dy1), image.Rect(sx0, sy0, sx1, sy1)
}
