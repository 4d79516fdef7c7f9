package qrimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// ErrBrandingLoad is matched by every *BrandingError.
var ErrBrandingLoad = errors.New("branding load failure")

// BrandingError records why a logo could not be used.  It is reported on
// the Result and never fails a composite.
type BrandingError struct {
	URL string
	Err error
}

func (e *BrandingError) Error() string {
	return fmt.Sprintf("branding load failure for %q: %v", e.URL, e.Err)
}

func (e *BrandingError) Unwrap() error { return e.Err }

func (e *BrandingError) Is(target error) bool { return target == ErrBrandingLoad }

// Branding selects the mark drawn in the centre of a code.
type Branding struct {
	ImageURL string
}

// BrandingLoader fetches a logo and returns it scaled to diameter×diameter.
type BrandingLoader interface {
	Load(ctx context.Context, url string, diameter int) (image.Image, error)
}

// default cap on a downloaded logo
const maxBrandingBytes = 5 << 20

// HTTPBrandingLoader downloads logos over HTTP(S).
type HTTPBrandingLoader struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPBrandingLoader(timeout time.Duration) *HTTPBrandingLoader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPBrandingLoader{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBrandingBytes,
	}
}

func (l *HTTPBrandingLoader) Load(ctx context.Context, url string, diameter int) (image.Image, error) {
	if diameter <= 0 {
		return nil, fmt.Errorf("logo diameter must be positive, got %d", diameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = maxBrandingBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("logo larger than %d bytes", limit)
	}
	return DecodeLogo(data, diameter)
}

// DecodeLogo decodes an encoded image and crops it to a centred square of
// diameter pixels.
func DecodeLogo(data []byte, diameter int) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	return imaging.Fill(img, diameter, diameter, imaging.Center, imaging.Lanczos), nil
}
