package feeds

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJWTSignerClaims(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	s := &jwtSigner{
		creds: Credentials{APIKey: "secret", APIKeyID: "key-1", AppID: "app-9", TokenTTL: time.Hour},
		now:   func() time.Time { return fixed },
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}

	parts := strings.Split(tok.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts, want 3", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decoding header: %v", err)
	}
	var header map[string]string
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		t.Fatalf("unmarshaling header: %v", err)
	}
	if header["alg"] != "HS256" || header["typ"] != "JWT" || header["kid"] != "key-1" {
		t.Errorf("unexpected header: %v", header)
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decoding claims: %v", err)
	}
	var claims struct {
		Iss string `json:"iss"`
		Iat int64  `json:"iat"`
		Exp int64  `json:"exp"`
	}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		t.Fatalf("unmarshaling claims: %v", err)
	}
	if claims.Iss != "app-9" {
		t.Errorf("iss = %q, want app-9", claims.Iss)
	}
	if claims.Iat != fixed.Unix() {
		t.Errorf("iat = %d, want %d", claims.Iat, fixed.Unix())
	}
	if claims.Exp != fixed.Add(time.Hour).Unix() {
		t.Errorf("exp = %d, want %d", claims.Exp, fixed.Add(time.Hour).Unix())
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)); parts[2] != want {
		t.Error("signature does not verify against the API key")
	}

	if want := fixed.Add(time.Hour - refreshEarly); !tok.Expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", tok.Expiry, want)
	}
}

func TestJWTSignerRequiresCredentials(t *testing.T) {
	s := &jwtSigner{creds: Credentials{}, now: time.Now}
	if _, err := s.Token(); err == nil {
		t.Fatal("expected error with empty credentials")
	}
}

func TestTokenSourceReusesUntilExpiry(t *testing.T) {
	src := NewTokenSource(Credentials{APIKey: "k", APIKeyID: "id", AppID: "app", TokenTTL: time.Hour}, nil)

	first, err := src.Token()
	if err != nil {
		t.Fatalf("first Token: %v", err)
	}
	second, err := src.Token()
	if err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if first.AccessToken != second.AccessToken {
		t.Error("token was not reused within its validity window")
	}
}
