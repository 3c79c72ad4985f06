// Package viewport implements the map camera: pure viewbox math over the
// fixed logical canvas, consumed by the placement API.
package viewport

import "github.com/nabeul-archive/poemap/internal/location"

// Zoom limits and speed. Width is clamped; height follows the canvas aspect
// ratio.
const (
	ZoomSpeed = 0.001
	MinWidth  = 200.0
	MaxWidth  = 3000.0
)

// ViewBox is the visible window into the logical canvas.
type ViewBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DefaultViewBox shows the whole canvas.
func DefaultViewBox() ViewBox {
	return ViewBox{X: 0, Y: 0, W: location.CanvasWidth, H: location.CanvasHeight}
}

func aspect() float64 {
	return location.CanvasHeight / location.CanvasWidth
}

// Zoom scales the viewbox by a wheel delta, anchored at the given screen
// position so the point under the cursor stays put. clientW/clientH are the
// rendered surface size in pixels.
func (v ViewBox) Zoom(delta, screenX, screenY, clientW, clientH float64) ViewBox {
	if clientW <= 0 || clientH <= 0 {
		return v
	}

	w := v.W * (1 + delta*ZoomSpeed)
	if w < MinWidth {
		w = MinWidth
	}
	if w > MaxWidth {
		w = MaxWidth
	}
	h := w * aspect()

	// Keep the logical point under the cursor fixed while the box resizes.
	lx := v.X + screenX/clientW*v.W
	ly := v.Y + screenY/clientH*v.H

	return ViewBox{
		X: lx - screenX/clientW*w,
		Y: ly - screenY/clientH*h,
		W: w,
		H: h,
	}
}

// Pan shifts the viewbox by a screen-pixel drag, scaled to logical units.
func (v ViewBox) Pan(dxPixels, dyPixels, clientW, clientH float64) ViewBox {
	if clientW <= 0 || clientH <= 0 {
		return v
	}
	v.X -= dxPixels * v.W / clientW
	v.Y -= dyPixels * v.H / clientH
	return v
}

// ToLogical converts a screen position to logical canvas coordinates.
func (v ViewBox) ToLogical(screenX, screenY, clientW, clientH float64) (x, y float64) {
	if clientW <= 0 || clientH <= 0 {
		return v.X, v.Y
	}
	return v.X + screenX/clientW*v.W, v.Y + screenY/clientH*v.H
}

// Viewport is the interactive camera state. Placement mode suspends pan and
// zoom so a click can drop a pending pin instead.
type Viewport struct {
	Box           ViewBox `json:"box"`
	PlacementMode bool    `json:"placement_mode"`
}

// New returns a viewport showing the whole canvas.
func New() *Viewport {
	return &Viewport{Box: DefaultViewBox()}
}

// Wheel applies a zoom step. Ignored in placement mode.
func (vp *Viewport) Wheel(delta, screenX, screenY, clientW, clientH float64) {
	if vp.PlacementMode {
		return
	}
	vp.Box = vp.Box.Zoom(delta, screenX, screenY, clientW, clientH)
}

// Drag applies a pan step. Ignored in placement mode.
func (vp *Viewport) Drag(dxPixels, dyPixels, clientW, clientH float64) {
	if vp.PlacementMode {
		return
	}
	vp.Box = vp.Box.Pan(dxPixels, dyPixels, clientW, clientH)
}

// Click resolves a screen position. In placement mode it returns the pending
// logical coordinates for a new pin and reports placed=true.
func (vp *Viewport) Click(screenX, screenY, clientW, clientH float64) (x, y float64, placed bool) {
	x, y = vp.Box.ToLogical(screenX, screenY, clientW, clientH)
	return x, y, vp.PlacementMode
}

// Reset restores the default viewbox and leaves placement mode.
func (vp *Viewport) Reset() {
	vp.Box = DefaultViewBox()
	vp.PlacementMode = false
}
