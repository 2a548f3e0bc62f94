package credstore

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	err   error
	hosts []string
}

func (r *stubResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.hosts = append(r.hosts, host)
	if r.err != nil {
		return nil, r.err
	}
	return []string{"127.0.0.1"}, nil
}

func TestDiagnose(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		p := newFakePlatform(t)
		resolver := &stubResolver{}
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) { o.Resolver = resolver })

		require.True(t, s.Diagnose(ctx, validToken))
		require.Equal(t, []string{"127.0.0.1"}, resolver.hosts)
		require.EqualValues(t, 1, p.pingHits.Load())
		require.EqualValues(t, 1, p.userHits.Load())

		out := sink.output()
		require.Contains(t, out, "API Base URL: "+p.srv.URL)
		require.Contains(t, out, "Attempt 1/1: Validating token...")
		require.Contains(t, out, "Token is VALID for user: "+userName)
		require.Contains(t, out, "AAAA...CCCC (length: 46)")
		require.NotContains(t, out, validToken)
	})

	t.Run("uses stored token", func(t *testing.T) {
		p := newFakePlatform(t)
		s := newTestStore(t, p, newFileRecords(t), &scriptedSink{}, func(o *Options) { o.Resolver = &stubResolver{} })
		require.NoError(t, s.Persist(ctx, validToken, nil))

		require.True(t, s.Diagnose(ctx, ""))
	})

	t.Run("dns failure stops early", func(t *testing.T) {
		p := newFakePlatform(t)
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) {
			o.Resolver = &stubResolver{err: errors.New("no such host")}
		})

		require.False(t, s.Diagnose(ctx, validToken))
		require.Zero(t, p.pingHits.Load())
		require.Contains(t, sink.output(), "DNS resolution failed: no such host")
	})

	t.Run("no token anywhere", func(t *testing.T) {
		p := newFakePlatform(t)
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) { o.Resolver = &stubResolver{} })

		require.False(t, s.Diagnose(ctx, ""))
		require.Contains(t, sink.output(), "No token provided and no stored token found")
		require.Zero(t, p.userHits.Load())
	})

	t.Run("short token", func(t *testing.T) {
		p := newFakePlatform(t)
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) { o.Resolver = &stubResolver{} })

		require.False(t, s.Diagnose(ctx, "abc|def"))
		require.Contains(t, sink.output(), "Token too short (length: 7)")
		require.Zero(t, p.userHits.Load())
	})

	t.Run("transient failure is attempted once", func(t *testing.T) {
		p := newFakePlatform(t)
		p.set(validToken, http.StatusServiceUnavailable)
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) { o.Resolver = &stubResolver{} })

		require.False(t, s.Diagnose(ctx, validToken))
		require.EqualValues(t, 1, p.userHits.Load())

		out := sink.output()
		require.Contains(t, out, "Max retries reached for network errors")
		require.Contains(t, out, "Possible causes:")
	})

	t.Run("rejected token prints hints", func(t *testing.T) {
		p := newFakePlatform(t)
		sink := &scriptedSink{}
		s := newTestStore(t, p, newFileRecords(t), sink, func(o *Options) { o.Resolver = &stubResolver{} })

		require.False(t, s.Diagnose(ctx, revokedToken))
		out := sink.output()
		require.Contains(t, out, "Authentication error")
		require.Contains(t, out, "Token has expired - get a new one from "+p.srv.URL+"/dev/token")
	})
}
