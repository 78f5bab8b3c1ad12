package config

import (
    "strings"

    "github.com/spf13/viper"
)

// CookieConfig controls the attributes of every cookie the service sets.
type CookieConfig struct {
    Secure             bool     // set the Secure attribute (always on in prod)
    Domain             string   // optional Domain attribute
    CSRFExemptPrefixes []string // path prefixes skipped by CSRF verification (signed webhooks)
}

func loadCookieConfig(v *viper.Viper, prod bool) CookieConfig {
    secure := prod
    if v.IsSet("COOKIE_SECURE") {
        secure = v.GetBool("COOKIE_SECURE") || prod
    }
    return CookieConfig{
        Secure:             secure,
        Domain:             v.GetString("COOKIE_DOMAIN"),
        CSRFExemptPrefixes: splitList(v.GetString("CSRF_EXEMPT_PREFIXES")),
    }
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
