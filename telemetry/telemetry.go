package telemetry

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// GenerateOTLPBearerToken signs token with the shared secret. The result is
// the token followed by a base64 sha256 signature, suitable for the
// Authorization header of the OTLP ingest endpoint.
func GenerateOTLPBearerToken(sharedSecret string, token string) (string, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(sharedSecret + "." + token)); err != nil {
		return "", fmt.Errorf("error hashing token: %w", err)
	}
	secret := hash.Sum(nil)
	sig := base64.StdEncoding.EncodeToString(secret)
	return token + "." + sig, nil
}

// GenerateOTLPBearerTokenWithExpiration mints a signed ingest token that
// encodes its own lifetime and issue time, so the collector can reject it
// after expiration without shared state.
func GenerateOTLPBearerTokenWithExpiration(sharedSecret string, expiration time.Time) (string, error) {
	ttl := time.Until(expiration)
	if ttl <= 0 {
		return "", fmt.Errorf("expiration time is in the past")
	}
	payload := str2duration.String(ttl.Round(time.Second)) + "." + strconv.FormatInt(time.Now().Unix(), 10)
	return GenerateOTLPBearerToken(sharedSecret, payload)
}
