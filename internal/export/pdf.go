// Package export renders printable sheets and manifests of provisioned
// codes.
package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

const (
	pageMargin = 12.0 // mm
	cellSize   = 58.0 // mm, image plus label
	labelH     = 6.0  // mm
)

// PDF lays out the code images on A4 pages in the code's orientation.
// images maps a seat id to its PNG; a single code uses the empty key.
// Seats without an image get a placeholder box so the sheet stays
// complete.
func PDF(code model.ProvisionedCode, images map[string][]byte) ([]byte, error) {
	orient := "P"
	if code.Orientation == model.OrientationLandscape {
		orient = "L"
	}
	pdf := gofpdf.New(orient, "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pageW, pageH := pdf.GetPageSize()

	header := func() float64 {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 8, pdf.UnicodeTranslatorFromDescriptor("")(code.QRName), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		sub := string(code.QRType)
		if code.SeatClass != "" {
			sub += " | " + code.SeatClass
		}
		pdf.CellFormat(0, 5, sub, "", 1, "L", false, 0, "")
		return pageMargin + 16
	}

	if code.QRType != model.QRTypeScreen {
		top := header()
		size := pageW - 2*pageMargin
		if avail := pageH - top - pageMargin - labelH; avail < size {
			size = avail
		}
		if size > 120 {
			size = 120
		}
		placeImage(pdf, "single", images[""], (pageW-size)/2, top, size, code.QRName)
		return output(pdf)
	}

	cols := int((pageW - 2*pageMargin) / cellSize)
	rows := int((pageH - pageMargin - (pageMargin + 16)) / cellSize)
	if cols < 1 || rows < 1 {
		return nil, fmt.Errorf("page too small for a %.0fmm cell", cellSize)
	}
	perPage := cols * rows
	var top float64
	for i, s := range code.Seats {
		if i%perPage == 0 {
			top = header()
		}
		slot := i % perPage
		x := pageMargin + float64(slot%cols)*cellSize
		y := top + float64(slot/cols)*cellSize
		placeImage(pdf, "seat_"+s.Seat, images[s.Seat], x+2, y, cellSize-4-labelH, s.Seat)
	}
	if len(code.Seats) == 0 {
		header()
	}
	return output(pdf)
}

func placeImage(pdf *gofpdf.Fpdf, name string, png []byte, x, y, size float64, label string) {
	if len(png) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
		pdf.ImageOptions(name, x, y, size, size, false, opts, 0, "")
	} else {
		pdf.SetDrawColor(180, 180, 180)
		pdf.Rect(x, y, size, size, "D")
		pdf.SetXY(x, y+size/2-3)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(size, 6, "image unavailable", "", 0, "C", false, 0, "")
	}
	pdf.SetXY(x, y+size)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(size, labelH, label, "", 0, "C", false, 0, "")
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
