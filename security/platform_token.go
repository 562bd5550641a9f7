package security

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/malwarebo/paybridge/models"
)

// JWKSPath is the well-known location of a tenant's public key set,
// relative to its API root.
const JWKSPath = "/.well-known/jwks.json"

// JWKSURL derives the tenant's key-set URL from its API URL.
func JWKSURL(tenantAPIURL string) string {
	base := strings.TrimSuffix(tenantAPIURL, "/")
	base = strings.TrimSuffix(base, "/graphql")
	return base + JWKSPath
}

// VerifyPlatformWebhook checks the detached JWS the platform attaches to
// webhook deliveries. The signature header carries the protected header and
// signature with an empty payload segment; the raw request body is the
// payload.
func VerifyPlatformWebhook(ctx context.Context, payload []byte, signature string, record *models.AuthRecord) error {
	parts := strings.Split(signature, ".")
	if len(parts) != 3 {
		return fmt.Errorf("malformed webhook signature: %w", ErrSignatureMismatch)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)
	compact := strings.Join(parts, ".")

	var (
		set jwk.Set
		err error
	)
	if record.JWKS != "" {
		set, err = jwk.Parse([]byte(record.JWKS))
		if err != nil {
			return fmt.Errorf("parse cached jwks: %w", err)
		}
	} else {
		set, err = jwk.Fetch(ctx, JWKSURL(record.TenantAPIURL))
		if err != nil {
			return fmt.Errorf("fetch jwks: %w", err)
		}
	}

	if _, err := jws.Verify([]byte(compact), jws.WithKeySet(set, jws.WithInferAlgorithmFromKey(true))); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return nil
}

// FetchJWKS downloads and validates a tenant's key set, returning it as the
// raw JSON document for caching on the auth record.
func FetchJWKS(ctx context.Context, client *http.Client, tenantAPIURL string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, JWKSURL(tenantAPIURL), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read jwks: %w", err)
	}
	if _, err := jwk.Parse(raw); err != nil {
		return "", fmt.Errorf("parse jwks: %w", err)
	}
	return string(raw), nil
}

// VerifyPlatformToken validates a platform-issued JWT against the
// tenant's key set. The JWKS cached on the auth record is preferred; a
// live fetch is the fallback for records registered before the fetch
// succeeded.
func VerifyPlatformToken(ctx context.Context, token string, record *models.AuthRecord) (jwt.Token, error) {
	var (
		set jwk.Set
		err error
	)
	if record.JWKS != "" {
		set, err = jwk.Parse([]byte(record.JWKS))
		if err != nil {
			return nil, fmt.Errorf("parse cached jwks: %w", err)
		}
	} else {
		set, err = jwk.Fetch(ctx, JWKSURL(record.TenantAPIURL))
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("verify platform token: %w", err)
	}
	return parsed, nil
}
