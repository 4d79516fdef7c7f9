package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// Optional settings.  An unset or unparsable value yields the default.

func envStr(key, def string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" {
        return v
    }
    return def
}

func envBool(key string, def bool) bool {
    switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return def
}

func envInt(key string, def int) int {
    n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
    if err != nil {
        return def
    }
    return n
}

func envDur(key string, def time.Duration) time.Duration {
    d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
    if err != nil {
        return def
    }
    return d
}
