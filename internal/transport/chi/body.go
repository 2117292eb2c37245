package chi

import (
	"bytes"
	"encoding/json"

	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// rawString accepts a JSON string, number or boolean and keeps its text.
// Numeric settings arrive either way from form inputs.
type rawString string

func (s *rawString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = rawString(v)
		return nil
	}
	*s = rawString(data)
	return nil
}

// SettingsBody carries embedding parameters exactly as typed by the user.
type SettingsBody struct {
	ModelID              rawString `json:"model_id"`
	EmbedMode            rawString `json:"embed_mode"`
	DurationSeconds      rawString `json:"duration_seconds"`
	AudioDurationSeconds rawString `json:"audio_duration_seconds"`
	DetailLevel          rawString `json:"detail_level"`
	TruncateMode         rawString `json:"truncate_mode"`
	MaxLengthChars       rawString `json:"max_length_chars"`
}

func (b SettingsBody) settings() request.Settings {
	return request.Settings{
		ModelID:              string(b.ModelID),
		EmbedMode:            string(b.EmbedMode),
		DurationSeconds:      string(b.DurationSeconds),
		AudioDurationSeconds: string(b.AudioDurationSeconds),
		DetailLevel:          string(b.DetailLevel),
		TruncateMode:         string(b.TruncateMode),
		MaxLengthChars:       string(b.MaxLengthChars),
	}
}

// SearchRequest is the body of POST /sessions/{session}/search.
// Image is a base64 data URL; it takes precedence over Text.
type SearchRequest struct {
	Text     string       `json:"text"`
	Image    string       `json:"image"`
	Option   string       `json:"embedding_option"`
	Settings SettingsBody `json:"settings"`
}

// ChatRequest is the body of POST /sessions/{session}/chat.
type ChatRequest struct {
	Text          string    `json:"text"`
	AudioDuration rawString `json:"audio_duration"`
}
