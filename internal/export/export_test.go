package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func screenCode() model.ProvisionedCode {
	return model.ProvisionedCode{
		QRType:      model.QRTypeScreen,
		QRName:      "Screen 1",
		SeatClass:   "GOLD",
		Orientation: model.OrientationPortrait,
		Seats: []model.CodeSeat{
			{Seat: "A1", QRCodeURL: "/files/1/a1.png", IsActive: true, ScanCount: 3},
			{Seat: "A2", QRCodeURL: "/files/1/a2.png", IsActive: false},
			{Seat: "B1", QRCodeURL: "/files/1/b1.png", IsActive: true},
		},
	}
}

func TestPDF(t *testing.T) {
	img := tinyPNG(t)
	cases := []struct {
		name   string
		code   model.ProvisionedCode
		images map[string][]byte
	}{
		{"screen portrait", screenCode(), map[string][]byte{"A1": img, "B1": img}},
		{"screen landscape", func() model.ProvisionedCode {
			c := screenCode()
			c.Orientation = model.OrientationLandscape
			return c
		}(), map[string][]byte{"A1": img}},
		{"single", model.ProvisionedCode{QRType: model.QRTypeSingle, QRName: "Canteen"}, map[string][]byte{"": img}},
		{"no seats", model.ProvisionedCode{QRType: model.QRTypeScreen, QRName: "Empty"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := PDF(tc.code, tc.images)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(out, []byte("%PDF")) {
				t.Fatalf("not a PDF: %q", out[:8])
			}
		})
	}
}

func TestPDFManyPages(t *testing.T) {
	c := screenCode()
	c.Seats = nil
	for i := 0; i < 40; i++ {
		c.Seats = append(c.Seats, model.CodeSeat{Seat: "A" + string(rune('1'+i%9))})
	}
	out, err := PDF(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(out, []byte("/Type /Page\n")); n < 2 {
		t.Fatalf("pages = %d, want several", n)
	}
}

func TestXLSX(t *testing.T) {
	out, err := XLSX(screenCode())
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Seat" || rows[0][3] != "Scans" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "A1" || rows[1][1] != "/files/1/a1.png" || rows[1][2] != "TRUE" || rows[1][3] != "3" {
		t.Fatalf("row A1 = %v", rows[1])
	}
	if rows[2][2] != "FALSE" {
		t.Fatalf("row A2 active = %q", rows[2][2])
	}
}

func TestXLSXSingle(t *testing.T) {
	url := "/files/1/single.png"
	out, err := XLSX(model.ProvisionedCode{QRType: model.QRTypeSingle, QRName: "Canteen", QRCodeURL: &url, ScanCount: 9})
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 2 || rows[1][1] != url || rows[1][3] != "9" {
		t.Fatalf("rows = %v", rows)
	}
}
