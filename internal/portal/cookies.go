// internal/portal/cookies.go
package portal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cookieRecord mirrors the fields the browser package persists that matter
// for freshness checks.
type cookieRecord struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Expires float64 `json:"expires"`
	Session bool    `json:"session"`
}

// SessionFresh reports whether a stored cookie file still holds a usable
// portal session. NextRequest keeps the session in a JWT cookie; its exp
// claim is authoritative when present, otherwise the cookie's own expiry
// decides. The token is never trusted for anything but its timestamp, so
// signature verification is deliberately skipped.
func SessionFresh(path string, now time.Time) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []cookieRecord
	if err := json.Unmarshal(data, &cookies); err != nil {
		return false, fmt.Errorf("failed to parse cookie file '%s': %w", path, err)
	}
	if len(cookies) == 0 {
		return false, nil
	}

	for _, c := range cookies {
		if !looksLikeJWT(c.Value) {
			continue
		}
		exp, err := jwtExpiry(c.Value)
		if err != nil || exp.IsZero() {
			continue
		}
		return exp.After(now), nil
	}

	// No session token found; fall back to the latest cookie expiry.
	var latest time.Time
	for _, c := range cookies {
		if c.Expires <= 0 {
			continue
		}
		if t := time.Unix(int64(c.Expires), 0); t.After(latest) {
			latest = t
		}
	}
	return latest.After(now), nil
}

func looksLikeJWT(value string) bool {
	return strings.HasPrefix(value, "ey") && strings.Count(value, ".") == 2
}

// jwtExpiry extracts the exp claim without verifying the signature.
func jwtExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, err
	}
	return exp.Time, nil
}
