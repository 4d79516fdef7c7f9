package model

import "time"

// QRType discriminates a code that addresses the venue directly from one
// that carries a batch of seats inside a screen.
type QRType string

const (
    QRTypeSingle QRType = "single"
    QRTypeScreen QRType = "screen"
)

// Valid reports whether t is one of the known code types.
func (t QRType) Valid() bool {
    return t == QRTypeSingle || t == QRTypeScreen
}

// LogoType selects which branding mark is composited into the code.
type LogoType string

const (
    LogoTypeDefault LogoType = "default" // platform-wide default logo
    LogoTypeTheater LogoType = "theater" // the theater's own logo
    LogoTypeNone    LogoType = "none"    // unbranded code
)

// Valid reports whether t is one of the known logo types.
func (t LogoType) Valid() bool {
    switch t {
    case LogoTypeDefault, LogoTypeTheater, LogoTypeNone:
        return true
    }
    return false
}

// Orientation is the print layout chosen for the code sheet.
type Orientation string

const (
    OrientationPortrait  Orientation = "portrait"
    OrientationLandscape Orientation = "landscape"
)

// ProvisionedCode is the unit persisted by one provisioning submission.
// A single code addresses the venue/name directly and has no seats; a
// screen code owns an ordered list of CodeSeat sub-records that were
// created atomically with it.  The pair (TheaterID, QRName) is unique.
//
// Fields:
//  ID          – primary key identifier.
//  TheaterID   – owning theater.
//  QRType      – single or screen.
//  QRName      – label taken from the theater's QR name registry.
//  SeatClass   – seat class copied from the registry at creation time.
//  LogoType    – branding mode used when compositing.
//  LogoURL     – resolved branding image URL (empty when unbranded).
//  Orientation – print orientation for exports.
//  QRCodeURL   – image URL of a single code (nil for screen codes).
//  ImageKey    – object storage key behind QRCodeURL.
//  ScanCount   – scans recorded against a single code.
//  CreatedBy   – operator that submitted the batch.
//  Seats       – seat sub-records (screen codes only).
type ProvisionedCode struct {
    ID          uint64      `json:"id"`                    // provisioned_codes.id
    TheaterID   uint64      `json:"theater_id"`            // provisioned_codes.theater_id
    QRType      QRType      `json:"qr_type"`               // provisioned_codes.qr_type
    QRName      string      `json:"qr_name"`               // provisioned_codes.qr_name
    SeatClass   string      `json:"seat_class"`            // provisioned_codes.seat_class
    LogoType    LogoType    `json:"logo_type"`             // provisioned_codes.logo_type
    LogoURL     string      `json:"logo_url"`              // provisioned_codes.logo_url
    Orientation Orientation `json:"orientation"`           // provisioned_codes.orientation
    QRCodeURL   *string     `json:"qr_code_url,omitempty"` // provisioned_codes.qr_code_url (nullable)
    ImageKey    string      `json:"-"`                     // provisioned_codes.image_key
    ScanCount   uint64      `json:"scan_count"`            // provisioned_codes.scan_count
    CreatedBy   uint64      `json:"created_by"`            // provisioned_codes.created_by
    CreatedAt   time.Time   `json:"created_at"`            // provisioned_codes.created_at
    UpdatedAt   time.Time   `json:"updated_at"`            // provisioned_codes.updated_at
    Seats       []CodeSeat  `json:"seats,omitempty"`
}

// CodeSeat is one seat sub-record of a screen code.  Seat values are
// unique within their parent code.
//
// Fields:
//  ID        – primary key identifier.
//  CodeID    – parent provisioned code.
//  Seat      – seat identifier such as "A1".
//  QRCodeURL – URL of the rendered code image for this seat.
//  ImageKey  – object storage key of that image.
//  IsActive  – whether scans of this seat are accepted.
//  ScanCount – number of recorded scans.
type CodeSeat struct {
    ID        uint64    `json:"id"`          // provisioned_code_seats.id
    CodeID    uint64    `json:"code_id"`     // provisioned_code_seats.code_id
    Seat      string    `json:"seat"`        // provisioned_code_seats.seat
    QRCodeURL string    `json:"qr_code_url"` // provisioned_code_seats.qr_code_url
    ImageKey  string    `json:"-"`           // provisioned_code_seats.image_key
    IsActive  bool      `json:"is_active"`   // provisioned_code_seats.is_active
    ScanCount uint64    `json:"scan_count"`  // provisioned_code_seats.scan_count
    CreatedAt time.Time `json:"created_at"`  // provisioned_code_seats.created_at
    UpdatedAt time.Time `json:"updated_at"`  // provisioned_code_seats.updated_at
}

// SeatPatch is a partial update of one seat.  Nil fields are left as they
// are.  Changing Seat renames the seat and re-renders its code.
type SeatPatch struct {
    Seat     *string `json:"seat,omitempty" validate:"omitempty,seat"`
    IsActive *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SeatPatch) Empty() bool { return p.Seat == nil && p.IsActive == nil }

// SeatTokens lists the seat identifiers of a code in stored order.
func (c ProvisionedCode) SeatTokens() []string {
    out := make([]string, len(c.Seats))
    for i, s := range c.Seats {
        out[i] = s.Seat
    }
    return out
}
