package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var claimsParser = jwt.NewParser()

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The server remains the authority; this only lets the client drop a token it
// already knows is dead. Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := claimsParser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func tokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}
