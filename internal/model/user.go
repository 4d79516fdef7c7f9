package model

import "time"

const (
    RoleAdmin    = "ADMIN"    // platform staff, may act on every theater
    RoleOperator = "OPERATOR" // venue staff, pinned to one theater
)

// User is an operator account as stored in the `users` table.  Handlers
// never return it directly; they build response DTOs without the hash.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, normalized login.
//  PasswordHash – bcrypt hashed password.
//  Role         – RoleAdmin or RoleOperator.
//  TheaterID    – theater an operator is scoped to (nil for admins).
//  IsActive     – whether the account may log in.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    TheaterID    *uint64   // users.theater_id (nullable)
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// ScopeTheaterID is the theater claim carried in access tokens; zero
// means unscoped.
func (u User) ScopeTheaterID() uint64 {
    if u.TheaterID == nil {
        return 0
    }
    return *u.TheaterID
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
