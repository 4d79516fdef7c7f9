package model

import "time"

// QRName is a label registered for a theater that an operator may pick
// when provisioning a code.  Names are unique per theater and carry the
// seat class printed alongside the code.  The naming workflow owns these
// rows; provisioning only reads them.
//
// Fields:
//  ID        – primary key identifier.
//  TheaterID – owning theater.
//  QRName    – unique label within the theater (e.g. "Screen 1", "Canteen").
//  SeatClass – seat class associated with the label (e.g. "GOLD").
//  IsActive  – inactive names are hidden from provisioning.
type QRName struct {
    ID        uint64    `json:"id"`         // qr_names.id
    TheaterID uint64    `json:"theater_id"` // qr_names.theater_id
    QRName    string    `json:"qr_name"`    // qr_names.qr_name
    SeatClass string    `json:"seat_class"` // qr_names.seat_class
    IsActive  bool      `json:"is_active"`  // qr_names.is_active
    CreatedAt time.Time `json:"created_at"` // qr_names.created_at
    UpdatedAt time.Time `json:"updated_at"` // qr_names.updated_at
}
