package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/security"
)

var (
	ErrURLNotAllowed       = errors.New("URL not allowed")
	ErrInvalidInstallToken = errors.New("install token rejected by tenant")
	ErrIncompatibleVersion = errors.New("incompatible platform version")
)

// Config bounds which tenants may register and which platform versions are
// supported. MinVersion is inclusive, MaxVersion exclusive; either may be
// empty to disable that bound.
type Config struct {
	AllowedURLPatterns []string
	MinVersion         string
	MaxVersion         string
}

// Service performs the one-time install handshake that binds a tenant to a
// durable access token. The handshake is strictly sequential; nothing is
// persisted unless every required step succeeds.
type Service struct {
	apl    apl.APL
	client *http.Client
	cfg    Config
	log    *zap.SugaredLogger
}

func NewService(store apl.APL, client *http.Client, cfg Config, log *zap.SugaredLogger) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{apl: store, client: client, cfg: cfg, log: log}
}

const appIdentityQuery = `{ app { id } shop { version } }`

type appIdentityResponse struct {
	Data struct {
		App struct {
			ID string `json:"id"`
		} `json:"app"`
		Shop struct {
			Version string `json:"version"`
		} `json:"shop"`
	} `json:"data"`
}

// Register runs the handshake for one tenant install. The install token is
// single-use; a rejection is final and must not be retried with the same
// token.
func (s *Service) Register(ctx context.Context, tenantAPIURL, installToken string) (*models.AuthRecord, error) {
	if !urlAllowed(tenantAPIURL, s.cfg.AllowedURLPatterns) {
		return nil, fmt.Errorf("%w: %s", ErrURLNotAllowed, tenantAPIURL)
	}

	appID, version, err := s.exchangeToken(ctx, tenantAPIURL, installToken)
	if err != nil {
		return nil, err
	}

	if err := checkVersion(version, s.cfg.MinVersion, s.cfg.MaxVersion); err != nil {
		return nil, err
	}

	jwks, err := security.FetchJWKS(ctx, s.client, tenantAPIURL)
	if err != nil {
		s.log.Warnw("JWKS fetch failed, will retry at verification time",
			"tenant", tenantAPIURL,
			"error", err)
		jwks = ""
	}

	record := &models.AuthRecord{
		TenantAPIURL: tenantAPIURL,
		AccessToken:  installToken,
		AppID:        appID,
		JWKS:         jwks,
	}

	// APL presence marks the registration as complete, so this write is the
	// final step.
	if err := s.apl.Set(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting auth record: %w", err)
	}

	s.log.Infow("tenant registered", "tenant", tenantAPIURL, "app_id", appID)
	return record, nil
}

func (s *Service) exchangeToken(ctx context.Context, tenantAPIURL, token string) (appID, version string, err error) {
	body, err := json.Marshal(map[string]string{"query": appIdentityQuery})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tenantAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("building token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("reading token exchange response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: tenant returned %d", ErrInvalidInstallToken, resp.StatusCode)
	}

	var parsed appIdentityResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("decoding token exchange response: %w", err)
	}
	if parsed.Data.App.ID == "" {
		return "", "", ErrInvalidInstallToken
	}
	return parsed.Data.App.ID, parsed.Data.Shop.Version, nil
}

// urlAllowed reports whether the tenant URL matches the allow-list. An empty
// list allows everything; a configured list fails closed.
func urlAllowed(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// compilePattern turns a wildcard pattern like "https://*.example.com/graphql/"
// into an anchored regexp. Only "*" is special.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, part := range strings.Split(pattern, "*") {
		if sb.Len() > 1 {
			sb.WriteString(".*")
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// checkVersion enforces the supported platform range: min inclusive, max
// exclusive. An unreported version passes only when no bounds are set.
func checkVersion(version, min, max string) error {
	if min == "" && max == "" {
		return nil
	}
	if version == "" {
		return fmt.Errorf("%w: tenant did not report a version", ErrIncompatibleVersion)
	}
	if min != "" && compareVersions(version, min) < 0 {
		return fmt.Errorf("%w: %s is below minimum %s", ErrIncompatibleVersion, version, min)
	}
	if max != "" && compareVersions(version, max) >= 0 {
		return fmt.Errorf("%w: %s is at or above maximum %s", ErrIncompatibleVersion, version, max)
	}
	return nil
}

// compareVersions compares dotted numeric versions segment by segment.
// Missing segments count as zero; non-numeric suffixes are ignored.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = numericPrefix(as[i])
		}
		if i < len(bs) {
			bv = numericPrefix(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func numericPrefix(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
