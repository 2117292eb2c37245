package chi

import (
	"net/http"
	"strings"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// EmbeddingRequestResponse is a normalized embedding request. Exactly one
// parameter group is set, matching Modality.
type EmbeddingRequestResponse struct {
	ModelID  string            `json:"model_id"`
	Modality modality.Modality `json:"modality"`
	Video    *VideoParameters  `json:"video,omitempty"`
	Audio    *AudioParameters  `json:"audio,omitempty"`
	Image    *ImageParameters  `json:"image,omitempty"`
	Text     *TextParameters   `json:"text,omitempty"`
}

// VideoParameters are the normalized video settings.
type VideoParameters struct {
	EmbedMode       request.EmbedMode `json:"embed_mode"`
	DurationSeconds int               `json:"duration_seconds"`
}

// AudioParameters are the normalized audio settings.
type AudioParameters struct {
	DurationSeconds int `json:"duration_seconds"`
}

// ImageParameters are the normalized image settings.
type ImageParameters struct {
	DetailLevel request.DetailLevel `json:"detail_level"`
}

// TextParameters are the normalized text settings.
type TextParameters struct {
	TruncateMode   request.TruncateMode `json:"truncate_mode"`
	MaxLengthChars int                  `json:"max_length_chars"`
}

// NormalizeEmbedding handles POST /embedding/{modality}/request.
// Out-of-range or malformed settings fall back to defaults; the call never fails on them.
func (s *Server) NormalizeEmbedding(w http.ResponseWriter, r *http.Request) {
	m, ok := bindModality(w, r)
	if !ok {
		return
	}
	var body SettingsBody
	if !decodeBody(w, r, &body) {
		return
	}
	settings := body.settings()
	if strings.TrimSpace(settings.ModelID) == "" {
		settings.ModelID = s.modelID
	}
	writeJSON(w, http.StatusOK, embeddingRequestToResponse(request.Build(m, settings)))
}

// EmbeddingDefaults handles GET /embedding/{modality}/defaults.
func (s *Server) EmbeddingDefaults(w http.ResponseWriter, r *http.Request) {
	m, ok := bindModality(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, embeddingRequestToResponse(request.Build(m, request.Settings{ModelID: s.modelID})))
}

func bindModality(w http.ResponseWriter, r *http.Request) (modality.Modality, bool) {
	var raw string
	if err := bindPathParam(r, "modality", &raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid modality parameter")
		return "", false
	}
	m, err := modality.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return "", false
	}
	return m, true
}

func embeddingRequestToResponse(req request.Request) EmbeddingRequestResponse {
	resp := EmbeddingRequestResponse{ModelID: req.ModelID(), Modality: req.Modality()}
	if v, ok := req.Video(); ok {
		resp.Video = &VideoParameters{EmbedMode: v.EmbedMode, DurationSeconds: v.DurationSeconds}
	}
	if a, ok := req.Audio(); ok {
		resp.Audio = &AudioParameters{DurationSeconds: a.DurationSeconds}
	}
	if img, ok := req.Image(); ok {
		resp.Image = &ImageParameters{DetailLevel: img.DetailLevel}
	}
	if t, ok := req.Text(); ok {
		resp.Text = &TextParameters{TruncateMode: t.TruncateMode, MaxLengthChars: t.MaxLengthChars}
	}
	return resp
}
