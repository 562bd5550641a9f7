package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/malwarebo/paybridge/apl"
)

// fakeTenant serves the GraphQL identity query and a JWKS document the way a
// real tenant installation would.
func fakeTenant(t *testing.T, appID, version string, serveJWKS bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]any{
			"data": map[string]any{
				"app":  map[string]any{"id": appID},
				"shop": map[string]any{"version": version},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	if serveJWKS {
		mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"keys":[{"kty":"oct","kid":"test","k":"c2VjcmV0LXNpZ25pbmcta2V5"}]}`))
		})
	}
	return httptest.NewServer(mux)
}

func newTestRegistration(store apl.APL, cfg Config) *Service {
	return NewService(store, http.DefaultClient, cfg, zap.NewNop().Sugar())
}

func TestRegister_HappyPath(t *testing.T) {
	tenant := fakeTenant(t, "app-123", "3.20.1", true)
	defer tenant.Close()
	apiURL := tenant.URL + "/graphql"

	store := apl.NewNormalized(apl.NewMemoryBackend(), "paybridge")
	svc := newTestRegistration(store, Config{MinVersion: "3.15", MaxVersion: "4.0"})

	record, err := svc.Register(context.Background(), apiURL, "install-token")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if record.AppID != "app-123" {
		t.Errorf("app id = %q, want %q", record.AppID, "app-123")
	}
	if record.JWKS == "" {
		t.Error("JWKS not cached on record")
	}

	stored, err := store.Get(context.Background(), apiURL)
	if err != nil {
		t.Fatalf("APL Get() after register error = %v", err)
	}
	if stored.AccessToken != "install-token" {
		t.Errorf("stored token = %q, want install token", stored.AccessToken)
	}
}

func TestRegister_AllowListFailsClosed(t *testing.T) {
	store := apl.NewNormalized(apl.NewMemoryBackend(), "paybridge")
	svc := newTestRegistration(store, Config{
		AllowedURLPatterns: []string{"https://*.trusted.example.com/graphql/"},
	})

	_, err := svc.Register(context.Background(), "https://evil.example.org/graphql/", "tok")
	if !errors.Is(err, ErrURLNotAllowed) {
		t.Fatalf("Register() error = %v, want ErrURLNotAllowed", err)
	}

	if _, err := store.Get(context.Background(), "https://evil.example.org/graphql/"); !errors.Is(err, apl.ErrNotFound) {
		t.Error("rejected registration must not persist a record")
	}
}

func TestRegister_MissingAppIDFatal(t *testing.T) {
	tenant := fakeTenant(t, "", "3.20.1", true)
	defer tenant.Close()

	store := apl.NewNormalized(apl.NewMemoryBackend(), "paybridge")
	svc := newTestRegistration(store, Config{})

	_, err := svc.Register(context.Background(), tenant.URL+"/graphql", "bad-token")
	if !errors.Is(err, ErrInvalidInstallToken) {
		t.Fatalf("Register() error = %v, want ErrInvalidInstallToken", err)
	}
}

func TestRegister_VersionGate(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"below minimum", "3.14.9", true},
		{"at minimum", "3.15", false},
		{"inside range", "3.20.1", false},
		{"at exclusive maximum", "4.0", true},
		{"above maximum", "4.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := fakeTenant(t, "app-123", tt.version, true)
			defer tenant.Close()

			store := apl.NewNormalized(apl.NewMemoryBackend(), "paybridge")
			svc := newTestRegistration(store, Config{MinVersion: "3.15", MaxVersion: "4.0"})

			_, err := svc.Register(context.Background(), tenant.URL+"/graphql", "tok")
			if tt.wantErr && !errors.Is(err, ErrIncompatibleVersion) {
				t.Errorf("Register() error = %v, want ErrIncompatibleVersion", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Register() error = %v, want nil", err)
			}
		})
	}
}

func TestRegister_JWKSFetchFailureIsNonFatal(t *testing.T) {
	tenant := fakeTenant(t, "app-123", "3.20.1", false)
	defer tenant.Close()

	store := apl.NewNormalized(apl.NewMemoryBackend(), "paybridge")
	svc := newTestRegistration(store, Config{})

	record, err := svc.Register(context.Background(), tenant.URL+"/graphql", "tok")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if record.JWKS != "" {
		t.Errorf("JWKS = %q, want empty when fetch fails", record.JWKS)
	}
}

func TestURLAllowed(t *testing.T) {
	patterns := []string{
		"https://*.trusted.example.com/graphql/",
		"https://exact.shop.io/graphql/",
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://a.trusted.example.com/graphql/", true},
		{"https://exact.shop.io/graphql/", true},
		{"https://evil.org/graphql/", false},
		{"http://a.trusted.example.com/graphql/", false},
	}

	for _, tt := range tests {
		if got := urlAllowed(tt.url, patterns); got != tt.want {
			t.Errorf("urlAllowed(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}

	if !urlAllowed("https://anything.example/graphql/", nil) {
		t.Error("empty allow-list should allow all")
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"3.15", "3.15", 0},
		{"3.15.1", "3.15", 1},
		{"3.9", "3.15", -1},
		{"4.0", "3.20.99", 1},
		{"3.20-rc1", "3.20", 0},
	}

	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
