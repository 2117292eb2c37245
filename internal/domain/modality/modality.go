package modality

import (
	"fmt"
	"strings"
)

// Modality is the content type of a retrieved fragment.
type Modality string

// Modality constants.
const (
	Video Modality = "video"
	Audio Modality = "audio"
	Image Modality = "image"
	Text  Modality = "text"
)

// All lists every supported modality in display order.
func All() []Modality {
	return []Modality{Video, Audio, Image, Text}
}

// IsValid checks if the modality is one of the supported values.
func (m Modality) IsValid() bool {
	return m == Video || m == Audio || m == Image || m == Text
}

// IsTemporal reports whether fragments of this modality carry a start/end time.
func (m Modality) IsTemporal() bool {
	return m == Video || m == Audio
}

// Parse converts user or wire input into a Modality. Matching is case-insensitive.
func Parse(s string) (Modality, error) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown modality %q (valid: video, audio, image, text)", s)
	}
	return m, nil
}
