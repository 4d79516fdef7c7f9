package utils // package utils holds token, credential and request validation helpers

import (
    "crypto/rand"
    "crypto/sha256"
    "encoding/hex"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed operator JWT and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is the raw refresh value handed to the client.  Only
// HashRefreshRaw(Raw) is persisted.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// OperatorClaims identifies the caller of the operator API.  TheaterID is
// zero for platform admins, who may act on every theater; operators are
// pinned to one venue.
type OperatorClaims struct {
    UserID    uint64
    Role      string
    TheaterID uint64
}

// NewAccessToken signs an HS256 JWT carrying sub, role and, for scoped
// operators, theater_id.
func NewAccessToken(secret string, c OperatorClaims, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  c.UserID,
        "role": c.Role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    if c.TheaterID != 0 {
        claims["theater_id"] = c.TheaterID
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken returns 48 random bytes, hex encoded, valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw is the SHA-256 hex digest stored for a refresh token.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
