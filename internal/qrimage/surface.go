package qrimage

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

// RasterSurface is the drawing capability the compositor needs.  Coordinates
// are in pixels with the origin at the top-left corner.
type RasterSurface interface {
	Size() int
	Fill(c color.Color)
	FillRect(x, y, w, h float64, c color.Color)
	FillCircle(cx, cy, r float64, c color.Color)
	// ClipCircle restricts subsequent drawing to the circle until ResetClip.
	ClipCircle(cx, cy, r float64)
	ResetClip()
	DrawImage(img image.Image, x, y int)
	Image() image.Image
	EncodePNG(w io.Writer) error
}

// SurfaceFactory creates a blank size×size surface.
type SurfaceFactory func(size int) RasterSurface

// GGSurface is a RasterSurface backed by a gg.Context.
type GGSurface struct {
	dc   *gg.Context
	size int
}

// NewGGSurface is the default SurfaceFactory.
func NewGGSurface(size int) RasterSurface {
	return &GGSurface{dc: gg.NewContext(size, size), size: size}
}

func (s *GGSurface) Size() int { return s.size }

func (s *GGSurface) Fill(c color.Color) {
	s.dc.SetColor(c)
	s.dc.Clear()
}

func (s *GGSurface) FillRect(x, y, w, h float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.Fill()
}

func (s *GGSurface) FillCircle(cx, cy, r float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.DrawCircle(cx, cy, r)
	s.dc.Fill()
}

func (s *GGSurface) ClipCircle(cx, cy, r float64) {
	s.dc.DrawCircle(cx, cy, r)
	s.dc.Clip()
}

func (s *GGSurface) ResetClip() { s.dc.ResetClip() }

func (s *GGSurface) DrawImage(img image.Image, x, y int) { s.dc.DrawImage(img, x, y) }

func (s *GGSurface) Image() image.Image { return s.dc.Image() }

func (s *GGSurface) EncodePNG(w io.Writer) error { return s.dc.EncodePNG(w) }
