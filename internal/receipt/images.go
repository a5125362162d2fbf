package receipt

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"showpass-core/internal/assets"
)

// ImageLoader turns an image reference into raw bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// HTTPImageLoader resolves a reference through the asset resolver and then
// either decodes the inline payload or fetches the URL. This is where the
// fetch/decode failures deferred by the resolver actually surface.
type HTTPImageLoader struct {
	Resolver *assets.Resolver
	Client   *http.Client
}

func NewImageLoader(resolver *assets.Resolver, client *http.Client) *HTTPImageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPImageLoader{Resolver: resolver, Client: client}
}

// Load returns (nil, nil) for an empty reference so callers can decide
// whether a missing image is a placeholder case or an abort case.
func (l *HTTPImageLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	resolved := l.Resolver.Resolve(ref)
	switch {
	case resolved == "":
		return nil, nil
	case strings.HasPrefix(resolved, "data:image/"):
		_, payload, found := strings.Cut(resolved, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URI")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline image: %w", err)
		}
		return data, nil
	default:
		return l.fetch(ctx, resolved)
	}
}

func (l *HTTPImageLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
