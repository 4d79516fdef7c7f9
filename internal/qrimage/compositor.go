package qrimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrSizeTooSmall means the canvas minus its quiet zone cannot give every
// module at least one pixel.
var ErrSizeTooSmall = errors.New("image size too small for code")

// LogoPercent is the logo diameter as a percentage of the image size.
const LogoPercent = 30

// MinMatrixPixels is the matrix area MinSize reserves: one pixel per module
// up to version 11, which covers every order URL this service encodes.
const MinMatrixPixels = 64

// MinSize is the smallest canvas worth rendering with quietZone px of
// margin on each side.
func MinSize(quietZone int) int {
	return 2*quietZone + MinMatrixPixels
}

const (
	DefaultQuietZone   = 32
	DefaultOuterBorder = 12
	DefaultInnerBorder = 6
)

// Compositor renders payloads into size×size codes.
type Compositor struct {
	Encoder    MatrixEncoder
	NewSurface SurfaceFactory
	Branding   BrandingLoader

	QuietZone   int // px of white around the matrix
	OuterBorder int // outer halo width beyond the logo radius
	InnerBorder int // inner halo width beyond the logo radius
}

// Result is a rendered code.  BrandingErr is set when a logo was requested
// but could not be loaded; Image and PNG then hold the unbranded code.
type Result struct {
	Image       image.Image
	PNG         []byte
	BrandingErr error
}

func NewCompositor(enc MatrixEncoder, loader BrandingLoader) *Compositor {
	return &Compositor{
		Encoder:     enc,
		NewSurface:  NewGGSurface,
		Branding:    loader,
		QuietZone:   DefaultQuietZone,
		OuterBorder: DefaultOuterBorder,
		InnerBorder: DefaultInnerBorder,
	}
}

// Composite renders payload at size×size on white with the quiet zone,
// then overlays the branding mark when one is given.
func (c *Compositor) Composite(ctx context.Context, payload string, size int, branding *Branding) (*Result, error) {
	if size <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", size)
	}
	modules, err := c.Encoder.Encode(payload)
	if err != nil {
		return nil, err
	}
	n := len(modules)
	if n == 0 {
		return nil, fmt.Errorf("encoder returned an empty matrix")
	}
	cell := (size - 2*c.QuietZone) / n
	if cell < 1 {
		return nil, fmt.Errorf("%w: %d px with %d px quiet zone for %d modules", ErrSizeTooSmall, size, c.QuietZone, n)
	}

	newSurface := c.NewSurface
	if newSurface == nil {
		newSurface = NewGGSurface
	}
	s := newSurface(size)
	s.Fill(color.White)

	// integer cell size, centred; leftover pixels widen the quiet zone
	offset := (size - n*cell) / 2
	for row := 0; row < n; row++ {
		for col := 0; col < len(modules[row]); col++ {
			if !modules[row][col] {
				continue
			}
			s.FillRect(float64(offset+col*cell), float64(offset+row*cell), float64(cell), float64(cell), color.Black)
		}
	}

	res := &Result{}
	if branding != nil && branding.ImageURL != "" {
		if err := c.overlay(ctx, s, branding.ImageURL); err != nil {
			res.BrandingErr = err
		}
	}

	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	res.Image = s.Image()
	res.PNG = buf.Bytes()
	return res, nil
}

func (c *Compositor) overlay(ctx context.Context, s RasterSurface, url string) error {
	if c.Branding == nil {
		return &BrandingError{URL: url, Err: errors.New("no branding loader configured")}
	}
	size := s.Size()
	diameter := size * LogoPercent / 100
	if diameter < 1 {
		return &BrandingError{URL: url, Err: fmt.Errorf("image size %d leaves no room for a logo", size)}
	}
	logo, err := c.Branding.Load(ctx, url, diameter)
	if err != nil {
		return &BrandingError{URL: url, Err: err}
	}

	center := float64(size) / 2
	radius := float64(diameter) / 2
	s.FillCircle(center, center, radius+float64(c.OuterBorder), color.White)
	s.FillCircle(center, center, radius+float64(c.InnerBorder), color.White)
	s.ClipCircle(center, center, radius)
	s.DrawImage(logo, int(center-radius), int(center-radius))
	s.ResetClip()
	return nil
}
