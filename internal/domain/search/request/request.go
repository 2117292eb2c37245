// Package request normalizes user-supplied embedding settings into a well-formed
// per-modality embedding request. Invalid input never fails: it falls back to the
// modality default.
package request

import (
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
)

// DefaultModelID is the embedding model used when none is configured.
const DefaultModelID = "amazon.nova-2-multimodal-embeddings-v1:0"

// Parameter limits.
const (
	MinDurationSeconds = 1
	MaxDurationSeconds = 30

	DefaultVideoDurationSeconds = 5
	DefaultAudioDurationSeconds = 30

	MinMaxLengthChars     = 800
	MaxMaxLengthChars     = 8192
	DefaultMaxLengthChars = 800
)

// EmbedMode controls how a video's audible and visual content is embedded.
type EmbedMode string

// Embed modes.
const (
	AudioVideoCombined EmbedMode = "AUDIO_VIDEO_COMBINED"
	AudioVideoSeparate EmbedMode = "AUDIO_VIDEO_SEPARATE"
)

// DetailLevel selects image processing resolution.
type DetailLevel string

// Detail levels. DocumentImage is meant for text-heavy images.
const (
	StandardImage DetailLevel = "STANDARD_IMAGE"
	DocumentImage DetailLevel = "DOCUMENT_IMAGE"
)

// TruncateMode selects which end of an over-long text is cut.
type TruncateMode string

// Truncate modes.
const (
	TruncateStart TruncateMode = "START"
	TruncateEnd   TruncateMode = "END"
	TruncateNone  TruncateMode = "NONE"
)

// Settings are raw, unvalidated values as typed by a user.
type Settings struct {
	ModelID              string `json:"model_id,omitempty"`
	EmbedMode            string `json:"embed_mode,omitempty"`
	DurationSeconds      string `json:"duration_seconds,omitempty"`
	AudioDurationSeconds string `json:"audio_duration_seconds,omitempty"`
	DetailLevel          string `json:"detail_level,omitempty"`
	TruncateMode         string `json:"truncate_mode,omitempty"`
	MaxLengthChars       string `json:"max_length_chars,omitempty"`
}

// Video parameters.
type Video struct {
	EmbedMode       EmbedMode
	DurationSeconds int
}

// Audio parameters.
type Audio struct {
	DurationSeconds int
}

// Image parameters.
type Image struct {
	DetailLevel DetailLevel
}

// Text parameters.
type Text struct {
	TruncateMode   TruncateMode
	MaxLengthChars int
}

// Request is a normalized embedding request. Exactly one parameter group is set,
// matching Modality.
type Request struct {
	modelID  string
	modality modality.Modality
	video    Video
	audio    Audio
	image    Image
	text     Text
}

// Build normalizes settings for the given modality. An unknown modality yields a
// text request.
func Build(m modality.Modality, s Settings) Request {
	r := Request{modelID: strings.TrimSpace(s.ModelID), modality: m}
	if r.modelID == "" {
		r.modelID = DefaultModelID
	}

	switch m {
	case modality.Video:
		r.video = Video{
			EmbedMode: parseEnum(s.EmbedMode, AudioVideoCombined,
				AudioVideoCombined, AudioVideoSeparate),
			DurationSeconds: parseBounded(s.DurationSeconds,
				MinDurationSeconds, MaxDurationSeconds, DefaultVideoDurationSeconds),
		}
	case modality.Audio:
		r.audio = Audio{
			DurationSeconds: parseBounded(s.AudioDurationSeconds,
				MinDurationSeconds, MaxDurationSeconds, DefaultAudioDurationSeconds),
		}
	case modality.Image:
		r.image = Image{
			DetailLevel: parseEnum(s.DetailLevel, StandardImage, StandardImage, DocumentImage),
		}
	default:
		r.modality = modality.Text
		r.text = Text{
			TruncateMode: parseEnum(s.TruncateMode, TruncateEnd,
				TruncateStart, TruncateEnd, TruncateNone),
			MaxLengthChars: parseBounded(s.MaxLengthChars,
				MinMaxLengthChars, MaxMaxLengthChars, DefaultMaxLengthChars),
		}
	}
	return r
}

// Defaults returns the default request for a modality.
func Defaults(m modality.Modality) Request {
	return Build(m, Settings{})
}

// AudioDuration normalizes a raw audio segment duration on its own.
func AudioDuration(raw string) int {
	return parseBounded(raw, MinDurationSeconds, MaxDurationSeconds, DefaultAudioDurationSeconds)
}

// ModelID returns the embedding model id.
func (r Request) ModelID() string { return r.modelID }

// Modality returns the request modality.
func (r Request) Modality() modality.Modality { return r.modality }

// Video returns the video parameters; ok is false for other modalities.
func (r Request) Video() (Video, bool) { return r.video, r.modality == modality.Video }

// Audio returns the audio parameters; ok is false for other modalities.
func (r Request) Audio() (Audio, bool) { return r.audio, r.modality == modality.Audio }

// Image returns the image parameters; ok is false for other modalities.
func (r Request) Image() (Image, bool) { return r.image, r.modality == modality.Image }

// Text returns the text parameters; ok is false for other modalities.
func (r Request) Text() (Text, bool) { return r.text, r.modality == modality.Text }

// parseBounded reads a number, range-checks the raw value, then truncates it.
func parseBounded(raw string, lo, hi, def int) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	if v < float64(lo) || v > float64(hi) {
		return def
	}
	return int(math.Trunc(v))
}

func parseEnum[T ~string](raw string, def T, allowed ...T) T {
	v := T(strings.ToUpper(strings.TrimSpace(raw)))
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return def
}
