// Package imagesource turns the three supported picture inputs into the one
// form the model accepts: a base64 data URL. Inputs are the bundled default
// picture, a user-selected file (already bytes by the time it reaches the
// server), or a remote URL that gets fetched and inlined.
package imagesource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/playwell-labs/kibo/internal/httpc"
)

// MaxBytes caps how much image data is accepted, from any source.
// Data URLs grow ~33% over the raw payload and the whole thing is replayed
// to the model on every turn, so this stays modest.
const MaxBytes = 8 << 20

var (
	// ErrEmpty indicates zero-length image data.
	ErrEmpty = errors.New("imagesource: empty image data")

	// ErrTooLarge indicates the image exceeds MaxBytes.
	ErrTooLarge = errors.New("imagesource: image too large")

	// ErrNotImage indicates the payload is not a recognized image format.
	ErrNotImage = errors.New("imagesource: not an image")
)

// DataURL encodes raw image bytes as a data URL with the given mime type.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FromBytes sniffs the image format and returns a data URL.
func FromBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrNotImage
	}
	return DataURL(mime, data), nil
}

// IsDataURL reports whether s already carries an inlined image.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// Fetch downloads a remote image and returns it as a data URL.
func Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("imagesource: bad url: %w", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagesource: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagesource: fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("imagesource: read failed: %w", err)
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}

	return FromBytes(data)
}
