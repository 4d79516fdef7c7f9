package config

import "time"

// ProvisionConfig controls code rendering and batch submission.
type ProvisionConfig struct {
    MaxSeats         int           // largest seat batch accepted in one submission
    ImageSize        int           // rendered code edge in px
    MaxImageSize     int           // largest size the image endpoint will render
    QuietZone        int           // white margin around the matrix in px
    LogoOuterBorder  int           // outer halo width beyond the logo radius
    LogoInnerBorder  int           // inner halo width beyond the logo radius
    Encoder          string        // skip2 or yeqown
    OrderBaseURL     string        // ordering page encoded into every code
    DefaultLogoURL   string        // logo used for logoType=default
    BrandingTimeout  time.Duration // per-fetch timeout for logos
    BrandingCacheTTL time.Duration // how long a fetched (or failed) logo is reused
    SessionLockTTL   time.Duration // upper bound on a held submission guard
    IndexTTL         time.Duration // lifetime of the cached existing-codes index
}

func LoadProvisionConfig() ProvisionConfig {
    c := ProvisionConfig{
        MaxSeats:         envInt("QR_MAX_SEATS", 500),
        ImageSize:        envInt("QR_IMAGE_SIZE", 1024),
        MaxImageSize:     envInt("QR_MAX_IMAGE_SIZE", 4096),
        QuietZone:        envInt("QR_QUIET_ZONE", 32),
        LogoOuterBorder:  envInt("QR_LOGO_OUTER_BORDER", 12),
        LogoInnerBorder:  envInt("QR_LOGO_INNER_BORDER", 6),
        Encoder:          envStr("QR_ENCODER", "skip2"),
        OrderBaseURL:     envStr("QR_ORDER_BASE_URL", "https://order.example.com/menu"),
        DefaultLogoURL:   envStr("QR_DEFAULT_LOGO_URL", ""),
        BrandingTimeout:  envDur("QR_BRANDING_TIMEOUT", 5*time.Second),
        BrandingCacheTTL: envDur("QR_BRANDING_CACHE_TTL", 5*time.Minute),
        SessionLockTTL:   envDur("QR_SESSION_LOCK_TTL", 2*time.Minute),
        IndexTTL:         envDur("QR_INDEX_TTL", 10*time.Minute),
    }
    if c.MaxSeats < 1 { c.MaxSeats = 1 }
    if c.QuietZone < 0 { c.QuietZone = 0 }
    // quiet zone on both sides plus one pixel per module of a version 11 code
    if floor := 2*c.QuietZone + 64; c.ImageSize < floor { c.ImageSize = floor }
    if c.MaxImageSize < c.ImageSize { c.MaxImageSize = c.ImageSize }
    return c
}

// StorageConfig selects where rendered images are kept.
type StorageConfig struct {
    Provider           string // gcs or local
    GCSBucket          string
    GCSCredentialsJSON string // empty uses Application Default Credentials
    PublicBaseURL      string // prefix of the URLs handed to operators
    LocalDir           string
}

func LoadStorageConfig() StorageConfig {
    return StorageConfig{
        Provider:           envStr("STORAGE_PROVIDER", "local"),
        GCSBucket:          envStr("GCS_BUCKET", ""),
        GCSCredentialsJSON: envStr("GCS_CREDENTIALS_JSON", ""),
        PublicBaseURL:      envStr("STORAGE_PUBLIC_BASE_URL", ""),
        LocalDir:           envStr("STORAGE_LOCAL_DIR", "data/codes"),
    }
}
