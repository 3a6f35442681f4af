package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boilermanc/onceuponadrawing/internal/observability/tracing"
)

const (
	maxImageBytes     = 32 << 20
	fetchTimeout      = 20 * time.Second
	fetchConcurrency  = 4
	contentTypeJPEG   = "image/jpeg"
	contentTypePNG    = "image/png"
	contentTypeGIF    = "image/gif"
	imageTypeJPEG     = "JPG"
	imageTypePNG      = "PNG"
	imageTypeGIF      = "GIF"
	imageTypeFallback = ""
)

var errUnsupportedImage = errors.New("unsupported_image_type")

// FetchedImage is an image downloaded for embedding into a PDF.
type FetchedImage struct {
	Data []byte
	// Type is the image type tag the PDF writer expects (JPG, PNG, GIF).
	Type string
}

// ImageFetcher downloads story artwork. Failures are isolated per image;
// the renderer substitutes fallback pages for entries that return an error.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedImage, error)
}

// HTTPImageFetcher fetches images over HTTP with a bounded timeout.
type HTTPImageFetcher struct {
	client *http.Client
}

func NewHTTPImageFetcher(client *http.Client) *HTTPImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &HTTPImageFetcher{client: tracing.WrapHTTPClient(client)}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) (*FetchedImage, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("missing_image_url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("image_too_large")
	}
	if len(data) == 0 {
		return nil, errors.New("empty_image_body")
	}

	imageType := imageTypeFor(resp.Header.Get("Content-Type"), data)
	if imageType == imageTypeFallback {
		return nil, errUnsupportedImage
	}
	if err := decodeCheck(data); err != nil {
		return nil, errUnsupportedImage
	}
	return &FetchedImage{Data: data, Type: imageType}, nil
}

func imageTypeFor(contentType string, data []byte) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case contentTypeJPEG:
		return imageTypeJPEG
	case contentTypePNG:
		return imageTypePNG
	case contentTypeGIF:
		return imageTypeGIF
	}

	// Sniff the magic bytes when the server sends a generic content type.
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' {
		return imageTypePNG
	}
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return imageTypeJPEG
	}
	if len(data) >= 6 && string(data[:3]) == "GIF" {
		return imageTypeGIF
	}
	return imageTypeFallback
}

type fetchResult struct {
	index int
	image *FetchedImage
	err   error
}

// fetchAll downloads every referenced image with bounded parallelism.
// Results are keyed by story page index; pages whose fetch failed carry a
// non-nil error and render as fallbacks.
func fetchAll(ctx context.Context, fetcher ImageFetcher, pages []StoryPage) map[int]fetchResult {
	results := make(map[int]fetchResult, len(pages))

	type job struct {
		index int
		url   string
	}
	jobs := make(chan job)
	out := make(chan fetchResult)

	var wg sync.WaitGroup
	for worker := 0; worker < fetchConcurrency; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				image, err := fetcher.Fetch(ctx, j.url)
				out <- fetchResult{index: j.index, image: image, err: err}
			}
		}()
	}

	go func() {
		for index, page := range pages {
			if strings.TrimSpace(page.ImageURL) == "" {
				continue
			}
			jobs <- job{index: index, url: page.ImageURL}
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	for result := range out {
		results[result.index] = result
	}
	return results
}
