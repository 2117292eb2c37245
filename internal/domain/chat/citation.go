package chat

import "github.com/kailas-cloud/mmdex/internal/domain/modality"

// View is how a selected citation is presented.
type View string

// Views. Detail opens a media viewer scoped to the citation's modality;
// Inline shows the text excerpt in place.
const (
	Detail View = "detail"
	Inline View = "inline"
)

// ViewFor picks the presentation for a citation modality.
func ViewFor(m modality.Modality) View {
	if m == modality.Text {
		return Inline
	}
	return Detail
}
