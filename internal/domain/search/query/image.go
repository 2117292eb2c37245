package query

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxImageBytes caps the decoded size of a query image.
const MaxImageBytes = 5 << 20

// Image is a decoded query image.
type Image struct {
	Bytes  []byte `json:"bytes,omitempty"`
	Format string `json:"format,omitempty"`
}

// IsEmpty reports whether no image was supplied.
func (i Image) IsEmpty() bool { return len(i.Bytes) == 0 }

// ParseDataURL decodes a base64 data URL such as "data:image/png;base64,iVBOR...".
// The format is the media subtype ("png").
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, nil
	}
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, fmt.Errorf("image must be a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("data URL has no payload")
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return Image{}, fmt.Errorf("data URL must be base64 encoded")
	}
	kind, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" || subtype == "" {
		return Image{}, fmt.Errorf("unsupported media type %q", mediaType)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return Image{}, fmt.Errorf("image too large (max %d bytes)", MaxImageBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return Image{}, fmt.Errorf("image too large (max %d bytes)", MaxImageBytes)
	}
	return Image{Bytes: data, Format: strings.ToLower(subtype)}, nil
}

// Base64 returns the payload in the encoding the backend expects.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Bytes)
}
