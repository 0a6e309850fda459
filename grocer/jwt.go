package grocer

import (
	"encoding/json"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)


// claims of a session token that the client reads without verifying
// the signature is verified by the services on each call
type SessionJwt struct {
	CustomerId string
	ExpiresAt time.Time
}


// only the payload segment is read. the header is not inspected
func ParseSessionJwtUnverified(jwt string) (*SessionJwt, error) {
	segments := strings.Split(jwt, ".")
	if len(segments) != 3 {
		return nil, gojwt.ErrTokenMalformed
	}

	parser := gojwt.NewParser()
	payload, err := parser.DecodeSegment(segments[1])
	if err != nil {
		return nil, err
	}
	claims := gojwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, gojwt.ErrTokenRequiredClaimMissing
	}

	sessionJwt := &SessionJwt{
		ExpiresAt: exp.Time,
	}

	if customerId, ok := claims["cust_id"].(string); ok {
		sessionJwt.CustomerId = customerId
	} else if sub, err := claims.GetSubject(); err == nil {
		sessionJwt.CustomerId = sub
	}

	return sessionJwt, nil
}


// empty, malformed, and exp-less tokens count as expired
func IsTokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	sessionJwt, err := ParseSessionJwtUnverified(token)
	if err != nil {
		return true
	}
	return !now.Before(sessionJwt.ExpiresAt)
}
