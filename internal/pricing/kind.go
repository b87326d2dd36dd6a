package pricing

import "strings"

// Kind identifies how a side of the garment is customized.
type Kind int

const (
	// KindOther covers any unrecognized customization. It is never charged.
	KindOther Kind = iota
	KindAITextImage
	KindUploadedImage
	KindAIDrawImage
	KindLibraryDesign
	KindMultiLibraryDesign
	KindEmbroideryText
	KindEmbroideryDesign
)

var kindTags = map[Kind]string{
	KindAITextImage:        "ai_text_image",
	KindUploadedImage:      "uploaded_image",
	KindAIDrawImage:        "ai_draw_image",
	KindLibraryDesign:      "library_design",
	KindMultiLibraryDesign: "multi_library_design",
	KindEmbroideryText:     "embroidery_text",
	KindEmbroideryDesign:   "embroidery_design",
}

// ParseKind maps a wire tag such as "ai_text_image" to its Kind.
// Unknown tags map to KindOther.
func ParseKind(tag string) Kind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for k, t := range kindTags {
		if t == tag {
			return k
		}
	}
	return KindOther
}

// String returns the wire tag of the kind.
func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "other"
}

// Label is the upper-case name used in error messages.
func (k Kind) Label() string {
	return strings.ToUpper(k.String())
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// chargesFlatAddon reports whether the kind uses an AI, upload or draw feature.
func (k Kind) chargesFlatAddon() bool {
	switch k {
	case KindAITextImage, KindUploadedImage, KindAIDrawImage:
		return true
	default:
		return false
	}
}

// scalablePrint reports whether the kind is a single rectangle printed to scale.
func (k Kind) scalablePrint() bool {
	switch k {
	case KindAITextImage, KindUploadedImage, KindAIDrawImage, KindLibraryDesign:
		return true
	default:
		return false
	}
}
