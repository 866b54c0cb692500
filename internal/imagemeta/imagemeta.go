// Package imagemeta probes remote images for their pixel dimensions. Shop
// CDNs rarely declare sizes in markup, and the banner policy needs real
// dimensions to pick the widest asset.
package imagemeta

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// probeReadLimit caps how much of the image is downloaded. Headers for all
// supported formats sit well inside this.
const probeReadLimit = 5 << 20

// Info holds the probed properties of a remote image.
type Info struct {
	Width    int
	Height   int
	Format   string
	FileSize int64
}

// Prober fetches remote images and decodes their headers.
type Prober struct {
	client *http.Client
}

// New creates a prober with a bounded per-request timeout.
func New() *Prober {
	return &Prober{client: &http.Client{Timeout: 10 * time.Second}}
}

// Probe fetches an image URL and decodes its dimensions without decoding
// the full pixel data.
func (p *Prober) Probe(ctx context.Context, rawURL string) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var fileSize int64
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		fileSize, _ = strconv.ParseInt(cl, 10, 64)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, probeReadLimit))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if fileSize == 0 {
		fileSize = int64(len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding dimensions: %w", err)
	}

	return &Info{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		FileSize: fileSize,
	}, nil
}
