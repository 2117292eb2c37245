// Package filter restricts vector search to a single embedding option.
package filter

import (
	"fmt"
	"strings"
)

// Option is an embedding option a fragment was indexed under.
type Option string

// Embedding options. All disables filtering.
const (
	All        Option = "all"
	Image      Option = "image"
	Text       Option = "text"
	AudioVideo Option = "audio-video"
	Video      Option = "video"
	Audio      Option = "audio"
)

// Options lists every selectable option in display order.
func Options() []Option {
	return []Option{All, Image, Text, AudioVideo, Video, Audio}
}

// IsValid checks if the option is one of the supported values.
func (o Option) IsValid() bool {
	switch o {
	case All, Image, Text, AudioVideo, Video, Audio:
		return true
	}
	return false
}

// Parse converts user input into an Option. Empty input means All.
func Parse(s string) (Option, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return All, nil
	}
	o := Option(s)
	if !o.IsValid() {
		return "", fmt.Errorf("unknown embedding option %q", s)
	}
	return o, nil
}

// Values returns the wire filter list: nil for All, otherwise a single element.
func (o Option) Values() []string {
	if o == All || o == "" {
		return nil
	}
	return []string{string(o)}
}
