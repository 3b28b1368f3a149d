package feeds

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// refreshEarly is how long before nominal expiry a token stops being
// reused, so a request never rides a token that dies on the wire.
const refreshEarly = 100 * time.Second

const tokenCacheKey = "feeds:jwt"

// Credentials identify this application to the feed API.
type Credentials struct {
	APIKey   string
	APIKeyID string
	AppID    string
	TokenTTL time.Duration
}

// NewTokenSource returns a cached source of bearer tokens for the feed
// API. Tokens are HS256 JWTs minted locally from the API credentials,
// reused in-process until shortly before expiry, and optionally shared
// across processes through Redis.
func NewTokenSource(creds Credentials, cache *redis.Client) oauth2.TokenSource {
	signer := &jwtSigner{creds: creds, now: time.Now}
	if cache == nil {
		return oauth2.ReuseTokenSource(nil, signer)
	}
	return oauth2.ReuseTokenSource(nil, &cachedTokenSource{base: signer, cache: cache})
}

type jwtSigner struct {
	creds Credentials
	now   func() time.Time
}

func (s *jwtSigner) Token() (*oauth2.Token, error) {
	if s.creds.APIKey == "" || s.creds.APIKeyID == "" || s.creds.AppID == "" {
		return nil, fmt.Errorf("feed api credentials are not configured")
	}

	ttl := s.creds.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := s.now()
	header, err := json.Marshal(map[string]string{
		"alg": "HS256",
		"typ": "JWT",
		"kid": s.creds.APIKeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding token header: %w", err)
	}
	claims, err := json.Marshal(map[string]interface{}{
		"iss": s.creds.AppID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding token claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(claims)
	mac := hmac.New(sha256.New, []byte(s.creds.APIKey))
	mac.Write([]byte(signingInput))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return &oauth2.Token{
		AccessToken: signingInput + "." + signature,
		TokenType:   "Bearer",
		Expiry:      now.Add(ttl - refreshEarly),
	}, nil
}

// cachedTokenSource shares one token between cooperating processes. The
// cache is best-effort: any Redis failure falls back to minting locally.
type cachedTokenSource struct {
	base  oauth2.TokenSource
	cache *redis.Client
}

func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	token, err := s.cache.Get(ctx, tokenCacheKey).Result()
	if err == nil && token != "" {
		if ttl, terr := s.cache.TTL(ctx, tokenCacheKey).Result(); terr == nil && ttl > time.Minute {
			return &oauth2.Token{
				AccessToken: token,
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(ttl),
			}, nil
		}
	}

	fresh, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if ttl := time.Until(fresh.Expiry); ttl > 0 {
		if err := s.cache.Set(ctx, tokenCacheKey, fresh.AccessToken, ttl).Err(); err != nil {
			logger.Log.WithError(err).Warn("Failed to cache feed token in Redis")
		}
	}
	return fresh, nil
}
