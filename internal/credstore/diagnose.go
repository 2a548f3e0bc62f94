package credstore

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/cdprunbooker/runbooker/internal/quip"
)

// pingTimeout bounds the reachability check.
const pingTimeout = 10 * time.Second

// Diagnose runs the connectivity and token checks in order, printing each
// result. An empty token selects the stored one. It reports whether the final
// validation succeeded.
func (s *Store) Diagnose(ctx context.Context, token string) bool {
	s.sink.Header("CDP Runbooker Token Diagnostics")
	s.sink.Info(fmt.Sprintf("Go Version: %s", runtime.Version()))
	s.sink.Info(fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH))

	client, err := quip.NewClient(s.opts.BaseURL, "", s.opts.ClientOptions...)
	if err != nil {
		s.sink.Error(fmt.Sprintf("✗ Invalid API base URL %q: %v", s.opts.BaseURL, err))
		return false
	}
	s.sink.Info(fmt.Sprintf("API Base URL: %s", client.BaseURL()))

	s.sink.Info(fmt.Sprintf("Test 1: Network connectivity to %s", client.Host()))
	addrs, err := s.opts.Resolver.LookupHost(ctx, client.Host())
	if err != nil {
		s.sink.Error(fmt.Sprintf("✗ DNS resolution failed: %v", err))
		return false
	}
	s.opts.Logger.DebugContext(ctx, "resolved api host", "host", client.Host(), "addrs", addrs)
	s.sink.Success("✓ DNS resolution successful")

	s.sink.Info("Test 2: HTTPS connectivity")
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	status, err := client.Ping(pingCtx)
	cancel()
	if err != nil {
		s.sink.Error(fmt.Sprintf("✗ HTTPS connection failed: %T: %v", err, err))
		return false
	}
	s.sink.Success(fmt.Sprintf("✓ HTTPS connection successful (status: %d)", status))

	s.sink.Info("Test 3: Token format check")
	if token == "" {
		stored, _, err := s.readStored(ctx)
		if err != nil {
			s.opts.Logger.DebugContext(ctx, "no stored token for diagnostics", "error", err)
			s.sink.Error("✗ No token provided and no stored token found")
			return false
		}
		token = stored
	}
	if !shapeValid(token) {
		s.sink.Error(fmt.Sprintf("✗ Token too short (length: %d)", len(token)))
		return false
	}
	s.sink.Info(fmt.Sprintf("Token Format: %s", redact(token)))
	switch n := segmentCount(token); {
	case n == tokenSegments:
		s.sink.Success(fmt.Sprintf("✓ Token format appears valid (%d parts, total length: %d)", n, len(token)))
	case n == 1:
		s.sink.Warning("⚠ Token doesn't match expected format (no pipe separators)")
	default:
		s.sink.Warning(fmt.Sprintf("⚠ Unusual token format (%d parts)", n))
	}

	s.sink.Info("Test 4: Token validation with API")
	v := s.validate(ctx, token, 1, true)
	if v.OK() {
		s.sink.Success(fmt.Sprintf("✓ Token is VALID for user: %s", v.Identity.DisplayName()))
		return true
	}

	s.sink.Error(fmt.Sprintf("✗ Token validation FAILED (%s)", v.Outcome))
	s.sink.Info("Possible causes:")
	s.sink.Info("1. Token has expired - get a new one from " + s.opts.TokenURL)
	s.sink.Info("2. Token was copied incorrectly - ensure no extra spaces or characters")
	s.sink.Info("3. Network/firewall issues - check VPN connection if working remotely")
	s.sink.Info("4. TLS/certificate issues - check the system certificate store")
	return false
}
