package credstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cdprunbooker/runbooker/internal/console"
	"github.com/cdprunbooker/runbooker/internal/tokenstore"
)

const (
	validToken   = "AAAAAAAAAAAA|BBBBBBBBBBBBBBBBBBBB|CCCCCCCCCCCC"
	revokedToken = "RRRRRRRRRRRR|RRRRRRRRRRRRRRRRRRRR|RRRRRRRRRRRR"
	userName     = "Ada Lovelace"
)

var (
	testMaterial = KeyMaterial{Machine: "build-host", User: "ada", Home: "/home/ada"}
	testNow      = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
)

// fakePlatform answers "who am I" per bearer token. Unknown tokens get 401.
type fakePlatform struct {
	srv *httptest.Server

	mu     sync.Mutex
	status map[string]int

	userHits atomic.Int32
	pingHits atomic.Int32
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()

	p := &fakePlatform{status: map[string]int{validToken: http.StatusOK}}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/users/current" {
			p.pingHits.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		p.userHits.Add(1)

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		p.mu.Lock()
		code, ok := p.status[token]
		p.mu.Unlock()
		if !ok {
			code = http.StatusUnauthorized
		}

		if code != http.StatusOK {
			http.Error(w, http.StatusText(code), code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":"u-1","name":%q,"emails":["ada@example.com"]}`, userName)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) set(token string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[token] = code
}

// scriptedSink replays canned answers and records everything printed.
type scriptedSink struct {
	confirms []bool
	prompts  []string

	lines     []string
	questions []string
}

var _ console.Sink = (*scriptedSink)(nil)

func (s *scriptedSink) Header(msg string)  { s.lines = append(s.lines, "header: "+msg) }
func (s *scriptedSink) Info(msg string)    { s.lines = append(s.lines, "info: "+msg) }
func (s *scriptedSink) Warning(msg string) { s.lines = append(s.lines, "warning: "+msg) }
func (s *scriptedSink) Error(msg string)   { s.lines = append(s.lines, "error: "+msg) }
func (s *scriptedSink) Success(msg string) { s.lines = append(s.lines, "success: "+msg) }

func (s *scriptedSink) Confirm(_ context.Context, q string, _ bool) (bool, error) {
	s.questions = append(s.questions, q)
	if len(s.confirms) == 0 {
		return false, console.ErrNoInput
	}
	answer := s.confirms[0]
	s.confirms = s.confirms[1:]
	return answer, nil
}

func (s *scriptedSink) Prompt(_ context.Context, q string, _ bool) (string, error) {
	s.questions = append(s.questions, q)
	if len(s.prompts) == 0 {
		return "", console.ErrNoInput
	}
	answer := s.prompts[0]
	s.prompts = s.prompts[1:]
	return answer, nil
}

func (s *scriptedSink) output() string {
	return strings.Join(s.lines, "\n")
}

// failingRecords reads like an empty store and refuses writes.
type failingRecords struct {
	writes int
}

func (f *failingRecords) Read(context.Context) ([]byte, error) { return nil, tokenstore.ErrNotFound }
func (f *failingRecords) Write(context.Context, []byte) error {
	f.writes++
	return errors.New("disk full")
}
func (f *failingRecords) Delete(context.Context) error { return nil }
func (f *failingRecords) Location() string             { return "failing" }

func newFileRecords(t *testing.T) *tokenstore.FileStore {
	t.Helper()
	records, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "cdp-runbooker", "config.json"))
	require.NoError(t, err)
	return records
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore builds a Store against p with millisecond backoff.
func newTestStore(t *testing.T, p *fakePlatform, records tokenstore.RecordStore, sink console.Sink, mutate ...func(*Options)) *Store {
	t.Helper()

	material := testMaterial
	opts := Options{
		Records:      records,
		BaseURL:      p.srv.URL,
		TokenURL:     p.srv.URL + "/dev/token",
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		Sink:         sink,
		Logger:       testLogger(),
		KeyMaterial:  &material,
		Now:          func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&opts)
	}

	s, err := New(opts)
	require.NoError(t, err)
	return s
}
