package keys

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source fetches the raw credential configuration text.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// NewSource picks a source for the given path: HTTP(S) URLs fetch over the
// network, everything else reads from the local filesystem.
func NewSource(path string) Source {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return &HTTPSource{URL: path}
	}
	return &FileSource{Path: path}
}

// FileSource reads the configuration from a local file.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.Path, err)
	}
	return string(data), nil
}

// HTTPSource fetches the configuration from a URL.
type HTTPSource struct {
	URL string

	// Client is the HTTP client to use. Nil means a client with a short
	// timeout; the keys resource is small and local.
	Client *http.Client
}

func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", s.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.URL, err)
	}

	return string(body), nil
}
