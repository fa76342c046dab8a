package sasl

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OAuthBearer implements RFC 7628 OAUTHBEARER. The initial response carries
// the bearer token; on failure the server sends a JSON error challenge and
// the client must answer with a single 0x01 byte to abort cleanly.
type OAuthBearer struct {
	Creds Credentials
	sent  bool
}

func NewOAuthBearer(creds Credentials) *OAuthBearer {
	return &OAuthBearer{Creds: creds}
}

func (o *OAuthBearer) Name() string { return "OAUTHBEARER" }

func (o *OAuthBearer) InitialResponse() []byte {
	o.sent = true
	return []byte(fmt.Sprintf("n,a=%s,\x01auth=Bearer %s\x01\x01", o.Creds.Username, o.Creds.Token))
}

func (o *OAuthBearer) Step(challenge []byte) ([]byte, bool, error) {
	// Any further challenge means the server rejected the bearer token;
	// RFC 7628 section 3.2.3 requires the client to answer with a lone
	// 0x01 to terminate the failed exchange.
	return []byte{0x01}, true, fmt.Errorf("sasl: OAUTHBEARER rejected: %s", challenge)
}

// TokenExpiresSoon reports whether a JWT-format token's exp claim is within
// skew of now, so callers can refresh before attempting an exchange that
// would otherwise fail. Non-JWT (opaque) tokens always report false --
// there's nothing to inspect.
func TokenExpiresSoon(token string, skew time.Duration) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < skew
}
