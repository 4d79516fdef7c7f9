package provision

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

// Query keys carried by every code.
const (
	ParamTheater = "theater"
	ParamQRName  = "qr"
	ParamSeat    = "seat"
	ParamType    = "type"
)

// BuildPayload is the URL encoded into a code: base plus theater, name,
// type and, for screen codes, seat.  Keys are emitted in sorted order so
// the same inputs always give the same payload.
func BuildPayload(base string, theaterID uint64, qrName, seatID string, qrType model.QRType) string {
	v := url.Values{}
	v.Set(ParamTheater, strconv.FormatUint(theaterID, 10))
	v.Set(ParamQRName, qrName)
	v.Set(ParamType, string(qrType))
	if seatID != "" {
		v.Set(ParamSeat, seatID)
	}
	q := v.Encode()
	switch {
	case base == "":
		return "?" + q
	case strings.Contains(base, "?"):
		return base + "&" + q
	default:
		return base + "?" + q
	}
}

// ScanTarget is what a scanned payload addresses.
type ScanTarget struct {
	TheaterID uint64
	QRName    string
	QRType    model.QRType
	Seat      string
}

// ParseScan reads the query of a scanned payload.
func ParseScan(v url.Values) (ScanTarget, error) {
	verr := &ValidationError{}
	var t ScanTarget

	id, err := strconv.ParseUint(v.Get(ParamTheater), 10, 64)
	if err != nil || id == 0 {
		verr.add(ParamTheater, "must be a positive theater id", nil)
	}
	t.TheaterID = id

	t.QRName = v.Get(ParamQRName)
	if t.QRName == "" {
		verr.add(ParamQRName, "required", nil)
	}

	t.QRType = model.QRType(v.Get(ParamType))
	if !t.QRType.Valid() {
		verr.add(ParamType, fmt.Sprintf("must be %q or %q", model.QRTypeSingle, model.QRTypeScreen), nil)
	}

	t.Seat = v.Get(ParamSeat)
	switch {
	case t.QRType == model.QRTypeScreen && t.Seat == "":
		verr.add(ParamSeat, "required for screen codes", nil)
	case t.QRType == model.QRTypeScreen:
		if _, err := seat.Parse(t.Seat); err != nil {
			verr.add(ParamSeat, err.Error(), err)
		}
	case t.QRType == model.QRTypeSingle && t.Seat != "":
		verr.add(ParamSeat, "not allowed on single codes", nil)
	}

	if err := verr.orNil(); err != nil {
		return ScanTarget{}, err
	}
	return t, nil
}
