package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names carried by access tokens.
const (
	ClaimSubject = "sub"
	ClaimStaff   = "staff"
)

var ErrInvalidClaims = errors.New("invalid token claims")

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the raw value handed to the client and its expiry.  Only
// a SHA-256 hash of Raw is stored.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// NewAccessToken signs an HS256 JWT carrying the user id as the subject and
// the staff flag.
func NewAccessToken(secret string, userID uint64, isStaff bool, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		ClaimSubject: strconv.FormatUint(userID, 10),
		ClaimStaff:   isStaff,
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// IdentityFromClaims reads the user id and staff flag back out of verified
// claims.  Numeric subjects are accepted as well as strings.
func IdentityFromClaims(claims jwt.MapClaims) (userID uint64, isStaff bool, err error) {
	switch sub := claims[ClaimSubject].(type) {
	case string:
		userID, err = strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return 0, false, ErrInvalidClaims
		}
	case float64:
		if sub < 1 || sub != float64(uint64(sub)) {
			return 0, false, ErrInvalidClaims
		}
		userID = uint64(sub)
	default:
		return 0, false, ErrInvalidClaims
	}
	if userID == 0 {
		return 0, false, ErrInvalidClaims
	}
	isStaff, _ = claims[ClaimStaff].(bool)
	return userID, isStaff, nil
}

// NewRefreshToken returns a random 96 character token valid for ttlDays.
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

// HashRefreshRaw returns the hex SHA-256 of a raw refresh token.
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
