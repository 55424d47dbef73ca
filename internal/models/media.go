package models

import "strings"

// MediaType is a kind of removable storage the job backs up to.
type MediaType string

// Known media types.
const (
	MediaTape       MediaType = "tape"
	MediaExternalHD MediaType = "externalHD"
	MediaCDRW       MediaType = "CDRW"
	MediaFlash      MediaType = "flash"
)

var mediaDisplayNames = map[MediaType]string{
	MediaTape:       "Tape",
	MediaExternalHD: "External HD",
	MediaCDRW:       "Read/Write CD",
	MediaFlash:      "Flash Drive",
}

// MediaTypes returns the recognised media types in their canonical order.
func MediaTypes() []MediaType {
	return []MediaType{MediaTape, MediaExternalHD, MediaCDRW, MediaFlash}
}

// MediaTypeNames returns the media types joined with sep.
func MediaTypeNames(sep string) string {
	names := make([]string, 0, 4)
	for _, mt := range MediaTypes() {
		names = append(names, string(mt))
	}
	return strings.Join(names, sep)
}

// ParseMediaType returns the media type named s. Matching is case sensitive.
func ParseMediaType(s string) (MediaType, bool) {
	mt := MediaType(s)
	return mt, mt.IsValid()
}

// IsValid reports whether m is one of the recognised media types.
func (m MediaType) IsValid() bool {
	_, ok := mediaDisplayNames[m]
	return ok
}

// DisplayName returns the human readable name, or the raw value if unknown.
func (m MediaType) DisplayName() string {
	if name, ok := mediaDisplayNames[m]; ok {
		return name
	}
	return string(m)
}

func (m MediaType) String() string {
	return string(m)
}
