package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/cdprunbooker/runbooker/internal/console"
	"github.com/cdprunbooker/runbooker/internal/credstore"
	"github.com/cdprunbooker/runbooker/internal/quip"
)

const testToken = "AAAAAAAAAAAA|BBBBBBBBBBBBBBBBBBBB|CCCCCCCCCCCC"

func newPlatform(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/users/current" {
			w.WriteHeader(http.StatusOK)
			return
		}
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u-1","name":"Ada Lovelace","emails":["ada@example.com"]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()

	cfg := &Config{
		API: APIConfig{BaseURL: baseURL, TokenURL: baseURL + "/dev/token"},
		Credentials: CredentialsConfig{
			File:         filepath.Join(t.TempDir(), "cdp-runbooker", "config.json"),
			RetryBackoff: time.Millisecond,
			NoBrowser:    true,
		},
		Legacy: LegacyConfig{Disabled: true},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func newTestApp(t *testing.T, cfg *Config, input string) (*App, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	term := console.NewTerminal(strings.NewReader(input), &out)
	a, err := New(cfg, term, WithKeyMaterial(credstore.KeyMaterial{Machine: "m", User: "u", Home: "/h"}))
	require.NoError(t, err)
	return a, &out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&Config{}, nil)
	require.Error(t, err)
}

func TestLoginStatusLogout(t *testing.T) {
	ctx := context.Background()
	srv, hits := newPlatform(t)
	cfg := testConfig(t, srv.URL)

	a, out := newTestApp(t, cfg, "y\n"+testToken+"\n")
	require.NoError(t, a.Login(ctx, false))
	require.Contains(t, out.String(), "Authenticated as: Ada Lovelace")
	require.Contains(t, out.String(), srv.URL+"/dev/token", "token page URL is printed when the browser is disabled")
	require.EqualValues(t, 1, hits.Load())

	status, statusOut := newTestApp(t, cfg, "")
	require.NoError(t, status.Status(ctx))
	require.Contains(t, statusOut.String(), "Encrypted token stored")
	require.Contains(t, statusOut.String(), "User: Ada Lovelace")
	require.EqualValues(t, 1, hits.Load(), "status stays offline")

	require.NoError(t, status.Logout(ctx))
	statusOut.Reset()
	require.NoError(t, status.Status(ctx))
	require.Contains(t, statusOut.String(), "No token stored")
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestLoginOpensTokenPage(t *testing.T) {
	srv, hits := newPlatform(t)
	cfg := testConfig(t, srv.URL)
	cfg.Credentials.NoBrowser = false

	var (
		opened []string
		out    bytes.Buffer
	)
	transport := &countingTransport{}
	a, err := New(cfg, console.NewTerminal(strings.NewReader("y\n"+testToken+"\n"), &out),
		WithKeyMaterial(credstore.KeyMaterial{Machine: "m", User: "u", Home: "/h"}),
		WithBrowser(func(url string) error {
			opened = append(opened, url)
			return nil
		}),
		WithClientOptions(quip.WithTransport(transport)),
	)
	require.NoError(t, err)

	require.NoError(t, a.Login(context.Background(), false))
	require.Equal(t, []string{srv.URL + "/dev/token"}, opened)
	require.EqualValues(t, 1, transport.calls.Load(), "validation goes through the supplied transport")
	require.EqualValues(t, 1, hits.Load())
}

func TestNoBrowserOverridesLauncher(t *testing.T) {
	srv, _ := newPlatform(t)
	cfg := testConfig(t, srv.URL)

	var opened int
	var out bytes.Buffer
	a, err := New(cfg, console.NewTerminal(strings.NewReader("y\n"+testToken+"\n"), &out),
		WithKeyMaterial(credstore.KeyMaterial{Machine: "m", User: "u", Home: "/h"}),
		WithBrowser(func(string) error {
			opened++
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, a.Login(context.Background(), false))
	require.Zero(t, opened)
	require.Contains(t, out.String(), srv.URL+"/dev/token")
}

func TestLoginDeclined(t *testing.T) {
	srv, hits := newPlatform(t)
	a, _ := newTestApp(t, testConfig(t, srv.URL), "n\n")

	err := a.Login(context.Background(), false)
	require.ErrorIs(t, err, credstore.ErrCredentialUnavailable)
	require.Zero(t, hits.Load())
}

func TestLoginForceReplacesRecord(t *testing.T) {
	ctx := context.Background()
	srv, _ := newPlatform(t)
	cfg := testConfig(t, srv.URL)

	first, _ := newTestApp(t, cfg, "y\n"+testToken+"\n")
	require.NoError(t, first.Login(ctx, false))

	// Without input the forced setup cannot complete.
	again, _ := newTestApp(t, cfg, "")
	err := again.Login(ctx, true)
	require.ErrorIs(t, err, credstore.ErrCredentialUnavailable)

	st, err := again.Store().Status(ctx)
	require.NoError(t, err)
	require.False(t, st.Present)
}

func TestWhoAmI(t *testing.T) {
	ctx := context.Background()
	srv, hits := newPlatform(t)
	cfg := testConfig(t, srv.URL)

	a, out := newTestApp(t, cfg, "y\n"+testToken+"\n")
	user, err := a.WhoAmI(ctx)
	require.NoError(t, err)
	require.Equal(t, "u-1", user.ID)
	require.Contains(t, out.String(), "Email: ada@example.com")
	// One validation during setup, one for the identity request.
	require.EqualValues(t, 2, hits.Load())
}

func TestDiagnose(t *testing.T) {
	srv, _ := newPlatform(t)
	a, out := newTestApp(t, testConfig(t, srv.URL), "")

	require.NoError(t, a.Diagnose(context.Background(), testToken))
	require.Contains(t, out.String(), "Token is VALID for user: Ada Lovelace")

	err := a.Diagnose(context.Background(), strings.Repeat("x", 40))
	require.ErrorIs(t, err, ErrDiagnosticsFailed)
}

func TestKeyringStorage(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	srv, _ := newPlatform(t)

	cfg := testConfig(t, srv.URL)
	cfg.Credentials.Storage = TokenStorageTypeKeyring
	cfg.Credentials.KeyringUser = "ada"

	a, _ := newTestApp(t, cfg, "y\n"+testToken+"\n")
	require.NoError(t, a.Login(ctx, false))

	secret, err := keyring.Get(keyringService, "ada")
	require.NoError(t, err)
	require.Contains(t, secret, `"encrypted_token"`)
	require.NotContains(t, secret, testToken)
}

type stubProvider struct {
	calls int
	err   error
}

func (s *stubProvider) GetToken(context.Context) (string, error) {
	s.calls++
	return testToken, s.err
}

func TestCredentialTokenSource(t *testing.T) {
	_, err := NewCredentialTokenSource(context.Background(), nil)
	require.Error(t, err)

	provider := &stubProvider{}
	source, err := NewCredentialTokenSource(context.Background(), provider)
	require.NoError(t, err)
	require.Zero(t, provider.calls, "no resolution before first use")

	for range 3 {
		tok, err := source.Token()
		require.NoError(t, err)
		require.Equal(t, testToken, tok.AccessToken)
		require.Equal(t, "Bearer", tok.Type())
	}
	require.Equal(t, 1, provider.calls)

	failing, err := NewCredentialTokenSource(context.Background(), &stubProvider{err: errors.New("declined")})
	require.NoError(t, err)
	_, err = failing.Token()
	require.Error(t, err)
}
