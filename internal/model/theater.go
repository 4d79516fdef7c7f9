package model

import "time"

// Theater represents a venue that owns QR names and provisioned codes.
// Every QR name, provisioned code and seat sub-record is scoped to one
// theater.  This struct corresponds to a row in the `theaters` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the venue.
//  LogoURL   – optional branding image used when logoType is "theater".
//  IsActive  – whether the venue can receive new codes.
//  CreatedAt – timestamp when the theater was created.
//  UpdatedAt – timestamp of last update.
type Theater struct {
    ID        uint64    `json:"id"`         // theaters.id
    Name      string    `json:"name"`       // theaters.name
    LogoURL   *string   `json:"logo_url"`   // theaters.logo_url (nullable)
    IsActive  bool      `json:"is_active"`  // theaters.is_active
    CreatedAt time.Time `json:"created_at"` // theaters.created_at
    UpdatedAt time.Time `json:"updated_at"` // theaters.updated_at
}
