// Package qrimage renders scannable seat and venue codes: a module matrix
// from one of the encoder backends, painted onto a raster surface with a
// quiet zone and an optional circular branding mark in the centre.
package qrimage

import (
	"fmt"
	"strings"

	skip2 "github.com/skip2/go-qrcode"
	yqr "github.com/yeqown/go-qrcode/v2"
)

// MatrixEncoder turns a payload into a square grid of modules, true for
// dark.  The grid carries no quiet zone; the compositor adds its own.
type MatrixEncoder interface {
	Encode(payload string) ([][]bool, error)
}

// Skip2Encoder encodes with github.com/skip2/go-qrcode at level H.
type Skip2Encoder struct{}

func (Skip2Encoder) Encode(payload string) ([][]bool, error) {
	q, err := skip2.New(payload, skip2.Highest)
	if err != nil {
		return nil, fmt.Errorf("skip2 encode: %w", err)
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

// YeqownEncoder encodes with github.com/yeqown/go-qrcode/v2 at the highest
// correction level and captures the matrix through a qrcode.Writer.
type YeqownEncoder struct{}

func (YeqownEncoder) Encode(payload string) ([][]bool, error) {
	qrc, err := yqr.NewWith(payload, yqr.WithErrorCorrectionLevel(yqr.ErrorCorrectionHighest))
	if err != nil {
		return nil, fmt.Errorf("yeqown encode: %w", err)
	}
	capture := &matrixCapture{}
	if err := qrc.Save(capture); err != nil {
		return nil, fmt.Errorf("yeqown encode: %w", err)
	}
	if len(capture.bits) == 0 {
		return nil, fmt.Errorf("yeqown encode: empty matrix")
	}
	return capture.bits, nil
}

// matrixCapture is a qrcode.Writer that keeps the module grid instead of
// drawing it.
type matrixCapture struct {
	bits [][]bool
}

func (m *matrixCapture) Write(mat yqr.Matrix) error {
	w, h := mat.Width(), mat.Height()
	bits := make([][]bool, h)
	for y := range bits {
		bits[y] = make([]bool, w)
	}
	mat.Iterate(yqr.IterDirection_ROW, func(x, y int, v yqr.QRValue) {
		if y < h && x < w {
			bits[y][x] = v.IsSet()
		}
	})
	m.bits = bits
	return nil
}

func (m *matrixCapture) Close() error { return nil }

// NewEncoder returns the backend registered under name ("skip2" or
// "yeqown"); an empty name selects skip2.
func NewEncoder(name string) (MatrixEncoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip2":
		return Skip2Encoder{}, nil
	case "yeqown":
		return YeqownEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown QR encoder %q", name)
	}
}
