package entity

// Editor sections an Issue can point at; the editor highlights every section that has one.
const (
	SectionNames     = "names"
	SectionMainImage = "main-image"
	SectionEvent     = "event"
	SectionVenue     = "venue"
	SectionGreeting  = "greeting"
	SectionGallery   = "gallery"
	SectionAccount   = "account"
)

// Issue is one problem found in an invitation that blocks saving or submission.
type Issue struct {
	SectionKey string `json:"section_key"`
	FieldID    string `json:"field_id"`
	FieldLabel string `json:"field_label"`
	Message    string `json:"message"`
}
