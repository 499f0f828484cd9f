package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akvo/dws-datapro-sub000/internal/common"
)

// CheckToken inspects the sync credential's expiry claim without verifying
// the signature; the server is the authority, the client only decides
// whether re-authentication is needed before wasting a round trip. Tokens
// without an exp claim are treated as non-expiring.
func CheckToken(token string, now time.Time) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if exp == nil {
		return nil
	}
	if now.After(exp.Time) {
		return common.ErrTokenExpired
	}
	return nil
}
