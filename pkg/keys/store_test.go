package keys_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papercomputeco/parley/pkg/keys"
)

// stubSource is a controllable Source for store tests.
type stubSource struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	fetches int
}

func (s *stubSource) Fetch(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.fetches++
	text, err, delay := s.text, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return text, err
}

func (s *stubSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *stubSource) set(text string, err error) {
	s.mu.Lock()
	s.text = text
	s.err = err
	s.mu.Unlock()
}

func TestGetReturnsTrimmedValues(t *testing.T) {
	src := &stubSource{text: "  OPENAI_API_KEY =  sk-test  \nOTHER=value\n"}
	store := keys.NewStore(src)
	ctx := context.Background()

	secret, ok, err := store.Get(ctx, "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-test", secret)

	secret, ok, err = store.Get(ctx, "OTHER")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", secret)
}

func TestDuplicateNameLastWins(t *testing.T) {
	src := &stubSource{text: "NAME=first\nNAME=second\n"}
	store := keys.NewStore(src)

	secret, ok, err := store.Get(context.Background(), "NAME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", secret)
}

func TestCommentsBlanksAndMalformedLinesSkipped(t *testing.T) {
	src := &stubSource{text: "# comment\nOPENAI_API_KEY=sk-test\n\nBAD_LINE_NO_EQUALS\n"}
	store := keys.NewStore(src)
	ctx := context.Background()

	secret, ok, err := store.Get(ctx, "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-test", secret)

	_, ok, err = store.Get(ctx, "BAD_LINE_NO_EQUALS")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "# comment")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, store.Entries(), 1)
}

func TestCasePreserved(t *testing.T) {
	src := &stubSource{text: "Mixed_Case=secret\n"}
	store := keys.NewStore(src)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "MIXED_CASE")
	require.NoError(t, err)
	assert.False(t, ok)

	secret, ok, err := store.Get(ctx, "Mixed_Case")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret", secret)
}

func TestValueMayContainEquals(t *testing.T) {
	src := &stubSource{text: "TOKEN=abc==def\n"}
	store := keys.NewStore(src)

	secret, ok, err := store.Get(context.Background(), "TOKEN")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc==def", secret)
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	src := &stubSource{text: "NAME=value\n", delay: 20 * time.Millisecond}
	store := keys.NewStore(src)

	const callers = 16
	var wg sync.WaitGroup
	wg.Add(callers)

	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			secret, ok, err := store.Get(context.Background(), "NAME")
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "value", secret)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.fetchCount())
}

func TestLoadIsIdempotent(t *testing.T) {
	src := &stubSource{text: "NAME=value\n"}
	store := keys.NewStore(src)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.Load(ctx))

	assert.Equal(t, 1, src.fetchCount())
}

func TestFailedLoadPropagatesAndRetries(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	store := keys.NewStore(src)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "NAME")
	require.Error(t, err)
	assert.ErrorIs(t, err, keys.ErrUnavailable)

	// The failure must not latch: once the resource is reachable the next
	// call loads it.
	src.set("NAME=value\n", nil)

	secret, ok, err := store.Get(ctx, "NAME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", secret)
}

func TestEntriesIsDefensiveCopy(t *testing.T) {
	src := &stubSource{text: "NAME=value\n"}
	store := keys.NewStore(src)
	require.NoError(t, store.Load(context.Background()))

	snapshot := store.Entries()
	snapshot["NAME"] = "tampered"
	snapshot["INJECTED"] = "x"

	secret, ok, err := store.Get(context.Background(), "NAME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", secret)

	_, ok, err = store.Get(context.Background(), "INJECTED")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("NAME=from-file\n"), 0o600))

	store := keys.NewStore(keys.NewSource(path))

	secret, ok, err := store.Get(context.Background(), "NAME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-file", secret)
}

func TestFileSourceMissingFile(t *testing.T) {
	store := keys.NewStore(keys.NewSource(filepath.Join(t.TempDir(), "missing.txt")))

	_, _, err := store.Get(context.Background(), "NAME")
	assert.ErrorIs(t, err, keys.ErrUnavailable)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("NAME=from-http\n"))
	}))
	defer srv.Close()

	store := keys.NewStore(keys.NewSource(srv.URL + "/keys.txt"))

	secret, ok, err := store.Get(context.Background(), "NAME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-http", secret)
}

func TestHTTPSourceNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := keys.NewStore(keys.NewSource(srv.URL + "/keys.txt"))

	_, _, err := store.Get(context.Background(), "NAME")
	assert.ErrorIs(t, err, keys.ErrUnavailable)
}
