package mode

import "strings"

// Mode is the retrieval strategy for one search action.
type Mode string

// Search mode constants.
const (
	// Browse lists the user's tasks without similarity scoring.
	Browse      Mode = "browse"
	VectorText  Mode = "vector_text"
	VectorImage Mode = "vector_image"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Browse || m == VectorText || m == VectorImage
}

// IsVector reports whether results carry distances.
func (m Mode) IsVector() bool {
	return m == VectorText || m == VectorImage
}

// InputType is the backend's name for the query input kind.
func (m Mode) InputType() string {
	if m == VectorImage {
		return "image"
	}
	return "text"
}

// Select picks the mode for the given inputs. Image bytes win over text;
// blank text with no image means browse.
func Select(text string, image []byte) Mode {
	if len(image) > 0 {
		return VectorImage
	}
	if strings.TrimSpace(text) != "" {
		return VectorText
	}
	return Browse
}
