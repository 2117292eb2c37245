package request

import (
	"testing"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
)

func TestDefaults(t *testing.T) {
	v, ok := Defaults(modality.Video).Video()
	if !ok {
		t.Fatal("video defaults: ok = false")
	}
	if v.EmbedMode != AudioVideoCombined || v.DurationSeconds != 5 {
		t.Errorf("video defaults = %+v", v)
	}

	a, ok := Defaults(modality.Audio).Audio()
	if !ok || a.DurationSeconds != 30 {
		t.Errorf("audio defaults = %+v, ok=%v", a, ok)
	}

	img, ok := Defaults(modality.Image).Image()
	if !ok || img.DetailLevel != StandardImage {
		t.Errorf("image defaults = %+v, ok=%v", img, ok)
	}

	txt, ok := Defaults(modality.Text).Text()
	if !ok || txt.TruncateMode != TruncateEnd || txt.MaxLengthChars != 800 {
		t.Errorf("text defaults = %+v, ok=%v", txt, ok)
	}
}

func TestBuild_ModelID(t *testing.T) {
	if got := Defaults(modality.Image).ModelID(); got != DefaultModelID {
		t.Errorf("ModelID() = %q, want %q", got, DefaultModelID)
	}
	r := Build(modality.Image, Settings{ModelID: " custom-model "})
	if r.ModelID() != "custom-model" {
		t.Errorf("ModelID() = %q", r.ModelID())
	}
}

func TestBuild_VideoDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 5},
		{"0", 5},
		{"1", 1},
		{"12", 12},
		{"12.9", 12},
		{"30", 30},
		{"31", 5},
		{"-4", 5},
		{"abc", 5},
		{"NaN", 5},
		{"Inf", 5},
		{" 7 ", 7},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, _ := Build(modality.Video, Settings{DurationSeconds: tt.raw}).Video()
			if v.DurationSeconds != tt.want {
				t.Errorf("DurationSeconds = %d, want %d", v.DurationSeconds, tt.want)
			}
		})
	}
}

func TestBuild_AudioDurationOutOfRange(t *testing.T) {
	a, _ := Build(modality.Audio, Settings{AudioDurationSeconds: "45"}).Audio()
	if a.DurationSeconds != 30 {
		t.Errorf("DurationSeconds = %d, want 30", a.DurationSeconds)
	}
	// video duration does not leak into audio
	a, _ = Build(modality.Audio, Settings{DurationSeconds: "3"}).Audio()
	if a.DurationSeconds != 30 {
		t.Errorf("DurationSeconds = %d, want 30", a.DurationSeconds)
	}
}

func TestBuild_MaxLengthChars(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 800},
		{"799", 800},
		{"800", 800},
		{"4096", 4096},
		{"8192", 8192},
		{"8193", 800},
		{"1000.7", 1000},
		{"many", 800},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			txt, _ := Build(modality.Text, Settings{MaxLengthChars: tt.raw}).Text()
			if txt.MaxLengthChars != tt.want {
				t.Errorf("MaxLengthChars = %d, want %d", txt.MaxLengthChars, tt.want)
			}
		})
	}
}

func TestBuild_Enums(t *testing.T) {
	v, _ := Build(modality.Video, Settings{EmbedMode: "audio_video_separate"}).Video()
	if v.EmbedMode != AudioVideoSeparate {
		t.Errorf("EmbedMode = %q", v.EmbedMode)
	}
	v, _ = Build(modality.Video, Settings{EmbedMode: "MIXED"}).Video()
	if v.EmbedMode != AudioVideoCombined {
		t.Errorf("EmbedMode = %q, want default", v.EmbedMode)
	}

	img, _ := Build(modality.Image, Settings{DetailLevel: "DOCUMENT_IMAGE"}).Image()
	if img.DetailLevel != DocumentImage {
		t.Errorf("DetailLevel = %q", img.DetailLevel)
	}

	txt, _ := Build(modality.Text, Settings{TruncateMode: "none"}).Text()
	if txt.TruncateMode != TruncateNone {
		t.Errorf("TruncateMode = %q", txt.TruncateMode)
	}
	txt, _ = Build(modality.Text, Settings{TruncateMode: "MIDDLE"}).Text()
	if txt.TruncateMode != TruncateEnd {
		t.Errorf("TruncateMode = %q, want default", txt.TruncateMode)
	}
}

func TestBuild_ExactlyOneGroup(t *testing.T) {
	for _, m := range modality.All() {
		r := Defaults(m)
		set := 0
		if _, ok := r.Video(); ok {
			set++
		}
		if _, ok := r.Audio(); ok {
			set++
		}
		if _, ok := r.Image(); ok {
			set++
		}
		if _, ok := r.Text(); ok {
			set++
		}
		if set != 1 {
			t.Errorf("%s: %d parameter groups set", m, set)
		}
		if r.Modality() != m {
			t.Errorf("Modality() = %q, want %q", r.Modality(), m)
		}
	}
}

func TestBuild_UnknownModality(t *testing.T) {
	r := Build(modality.Modality("hologram"), Settings{})
	if r.Modality() != modality.Text {
		t.Errorf("Modality() = %q, want text", r.Modality())
	}
	if _, ok := r.Text(); !ok {
		t.Error("Text() ok = false")
	}
}

func TestAudioDuration(t *testing.T) {
	if got := AudioDuration("10"); got != 10 {
		t.Errorf("AudioDuration(10) = %d", got)
	}
	if got := AudioDuration("0"); got != 30 {
		t.Errorf("AudioDuration(0) = %d", got)
	}
}
