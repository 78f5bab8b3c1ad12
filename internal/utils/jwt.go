package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/hmac"   // keyed hashing for refresh tokens
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // digest used by the HMAC
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "fmt"
    "strings"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// TokenTypeAccess is the only value of the "type" claim accepted on
// protected routes.
const TokenTypeAccess = "access"

// ErrConfiguration is returned when tokens are requested but no signing
// secret was configured.
var ErrConfiguration = errors.New("token issuer: signing secret not configured")

// ErrUnauthenticated is the parent of every access token verification
// failure.  Callers that only need a yes/no answer match on it.
var ErrUnauthenticated = errors.New("unauthenticated")

// Specific verification failures.  All of them wrap ErrUnauthenticated.
var (
    ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthenticated)
    ErrTokenExpired     = fmt.Errorf("%w: token expired", ErrUnauthenticated)
    ErrMalformedToken   = fmt.Errorf("%w: malformed token", ErrUnauthenticated)
    ErrWrongTokenType   = fmt.Errorf("%w: wrong token type", ErrUnauthenticated)
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
    UserID string `json:"userId"`
    Email  string `json:"email"`
    Role   string `json:"role"`
    Type   string `json:"type"`
    jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived opaque token used to obtain new
// access tokens.  Only a keyed hash of Raw is ever persisted.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// TokenPair is what a successful login, registration or refresh hands
// back to the client.
type TokenPair struct {
    Access  AccessToken
    Refresh RefreshToken
}

// TokenIssuer signs and verifies access tokens and mints refresh tokens.
// It is safe for concurrent use.
type TokenIssuer struct {
    secret     []byte
    accessTTL  time.Duration
    refreshTTL time.Duration
    now        func() time.Time
}

// NewTokenIssuer builds an issuer.  An empty secret is accepted here so the
// failure surfaces as ErrConfiguration on first use.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
    return &TokenIssuer{
        secret:     []byte(secret),
        accessTTL:  accessTTL,
        refreshTTL: refreshTTL,
        now:        func() time.Time { return time.Now().UTC() },
    }
}

// WithClock replaces the time source; used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
    i.now = now
    return i
}

// IssueTokenPair signs an access token for the user and mints a fresh
// refresh token.  The caller is responsible for persisting the refresh token.
func (i *TokenIssuer) IssueTokenPair(userID, email, role string) (TokenPair, error) {
    access, err := i.NewAccessToken(userID, email, role)
    if err != nil {
        return TokenPair{}, err
    }
    refresh, err := i.NewRefreshToken()
    if err != nil {
        return TokenPair{}, err
    }
    return TokenPair{Access: access, Refresh: refresh}, nil
}

// NewAccessToken builds and signs an HS256 JWT carrying userId, email,
// role, type=access, exp and iat.
func (i *TokenIssuer) NewAccessToken(userID, email, role string) (AccessToken, error) {
    if len(i.secret) == 0 {
        return AccessToken{}, ErrConfiguration
    }
    now := i.now()
    exp := now.Add(i.accessTTL)
    claims := AccessClaims{
        UserID: userID,
        Email:  email,
        Role:   role,
        Type:   TokenTypeAccess,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   userID,
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken returns a cryptographically secure random token and its
// expiration time.
func (i *TokenIssuer) NewRefreshToken() (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: raw, Exp: i.now().Add(i.refreshTTL)}, nil
}

// VerifyAccessToken checks signature, expiry and token type.  Only tokens
// whose type claim is "access" pass.
func (i *TokenIssuer) VerifyAccessToken(token string) (*AccessClaims, error) {
    if len(i.secret) == 0 {
        return nil, ErrConfiguration
    }
    claims := &AccessClaims{}
    _, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
        return i.secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(i.now),
    )
    if err != nil {
        switch {
        case errors.Is(err, jwt.ErrTokenExpired):
            return nil, ErrTokenExpired
        case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
            return nil, ErrInvalidSignature
        default:
            return nil, ErrMalformedToken
        }
    }
    if claims.Type != TokenTypeAccess {
        return nil, ErrWrongTokenType
    }
    if claims.UserID == "" {
        return nil, ErrMalformedToken
    }
    return claims, nil
}

// LooksLikeJWT reports whether s has the three-segment compact JWS shape.
// Refresh tokens are plain hex and never contain a dot.
func LooksLikeJWT(s string) bool {
    return strings.Count(s, ".") == 2
}

// TokenHasher derives the stored form of a refresh token.  The digest is
// HMAC-SHA256 keyed with a server-side pepper, so a leaked table cannot be
// checked offline without the key, while equal inputs still map to equal
// digests for lookup.
type TokenHasher struct{ key []byte }

func NewTokenHasher(pepper string) TokenHasher { return TokenHasher{key: []byte(pepper)} }

// Hash returns the hex digest of raw.
func (h TokenHasher) Hash(raw string) string {
    mac := hmac.New(sha256.New, h.key)
    mac.Write([]byte(raw))
    return hex.EncodeToString(mac.Sum(nil))
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}

// RandomHex exposes randomHex for cookie values (CSRF tokens).
func RandomHex(n int) (string, error) { return randomHex(n) }
