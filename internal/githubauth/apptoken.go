package githubauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alecthomas/errors"
	"github.com/google/go-github/v68/github"
)

// refreshBuffer is how long before expiry a cached installation token is
// treated as stale and refreshed, the buffer the teacher's
// githubapp.TokenCacheConfig named as a duration.
const refreshBuffer = 2 * time.Minute

// AppTokenSource mints short-lived GitHub App installation tokens: it signs
// an RS256 JWT as the app, exchanges it for an installation access token via
// go-github's Apps API, and caches the result until it nears expiry.
type AppTokenSource struct {
	cfg    AppConfig
	apiURL string

	mu      *sync.Mutex
	cached  string
	expires time.Time
}

// NewAppTokenSource builds an AppTokenSource for a validated AppConfig.
// apiURL is the GitHub REST API base; empty means github.com.
func NewAppTokenSource(cfg AppConfig, apiURL string) *AppTokenSource {
	return &AppTokenSource{cfg: cfg, apiURL: apiURL, mu: &sync.Mutex{}}
}

// Token implements CredentialProvider, refreshing the cached installation
// token when it is absent or within refreshBuffer of expiry.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expires.Add(-refreshBuffer)) {
		return s.cached, nil
	}

	token, expires, err := s.mintInstallationToken(ctx)
	if err != nil {
		return "", errors.Wrap(err, "mint github app installation token")
	}
	s.cached = token
	s.expires = expires
	return token, nil
}

func (s *AppTokenSource) mintInstallationToken(ctx context.Context) (string, time.Time, error) {
	jwtStr, err := s.signAppJWT()
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign app jwt")
	}

	client := github.NewClient(nil).WithAuthToken(jwtStr)
	if s.apiURL != "" {
		client, err = client.WithEnterpriseURLs(s.apiURL, s.apiURL)
		if err != nil {
			return "", time.Time{}, errors.Wrap(err, "configure enterprise api url")
		}
	}

	installationID, err := strconv.ParseInt(s.cfg.InstallationID, 10, 64)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "parse installation id")
	}

	installToken, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "create installation token")
	}
	return installToken.GetToken(), installToken.GetExpiresAt().Time, nil
}

// signAppJWT builds the short-lived RS256 JWT GitHub requires for app-level
// API calls, per GitHub's documented app-authentication flow.
func (s *AppTokenSource) signAppJWT() (string, error) {
	keyPEM, err := os.ReadFile(s.cfg.PrivateKeyPath)
	if err != nil {
		return "", errors.Wrap(err, "read private key")
	}
	key, err := parseRSAPrivateKey(keyPEM)
	if err != nil {
		return "", errors.Wrap(err, "parse private key")
	}

	now := time.Now()
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]any{
		"iat": now.Add(-60 * time.Second).Unix(),
		"exp": now.Add(9 * time.Minute).Unix(),
		"iss": s.cfg.AppID,
	}

	headerSeg, err := encodeJWTSegment(header)
	if err != nil {
		return "", errors.Wrap(err, "encode jwt header")
	}
	claimsSeg, err := encodeJWTSegment(claims)
	if err != nil {
		return "", errors.Wrap(err, "encode jwt claims")
	}

	signingInput := headerSeg + "." + claimsSeg
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "sign jwt")
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func encodeJWTSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.Errorf("no PEM block found in private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse pkcs8 private key")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("private key is not RSA")
	}
	return key, nil
}
