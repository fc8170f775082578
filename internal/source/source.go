// Package source loads the listing text the agents search.
package source

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/flight-agent-cli/internal/config"
)

//go:embed flights.txt
var defaultListing string

// maxBodyBytes caps how much of a remote listing is read.
const maxBodyBytes = 4 << 20

// Provider returns listing text.
type Provider interface {
	Text(ctx context.Context) (string, error)
	// Describe names the source for logs.
	Describe() string
}

// NewFromConfig picks the file source when set, then the URL, then the built-in listing.
func NewFromConfig(cfg config.SourceConfig) Provider {
	switch {
	case cfg.File != "":
		return File{Path: cfg.File}
	case cfg.URL != "":
		return NewURL(cfg.URL, cfg.Timeout)
	default:
		return Static{}
	}
}

// Static serves the listing compiled into the binary.
type Static struct{}

func (Static) Text(ctx context.Context) (string, error) { return defaultListing, ctx.Err() }
func (Static) Describe() string                        { return "built-in listing" }

// File reads a local file. A leading ~ is expanded to the home directory.
type File struct {
	Path string
}

func (f File) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := homedir.Expand(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to expand source path %q: %w", f.Path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), nil
}

func (f File) Describe() string { return "file " + f.Path }

// URL fetches a page over HTTP. HTML bodies are reduced to their visible text.
type URL struct {
	Address string
	Client  *http.Client
}

// NewURL returns a URL source with its own client. A zero timeout means no timeout.
func NewURL(address string, timeout time.Duration) URL {
	return URL{Address: address, Client: &http.Client{Timeout: timeout}}
}

func (u URL) Text(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Address, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch source: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read source body: %w", err)
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return VisibleText(string(body))
	}
	return string(body), nil
}

func (u URL) Describe() string { return "url " + u.Address }
