// Package catalog lists the pretrained Ultralytics detection weights the
// tool knows how to fetch.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// AssetsRelease is the Ultralytics assets release the weights are fetched from.
const AssetsRelease = "v8.3.0"

// DefaultAssetsBaseURL is the download prefix for release assets.
const DefaultAssetsBaseURL = "https://github.com/ultralytics/assets/releases/download/" + AssetsRelease

// ErrUnknownModel is returned for identifiers outside the catalog.
var ErrUnknownModel = errors.New("unknown model identifier")

// Family groups weights by architecture generation.
type Family string

const (
	FamilyYOLO11 Family = "yolo11"
	FamilyYOLOv8 Family = "yolov8"
)

// Size is the model scale suffix.
type Size string

const (
	SizeNano   Size = "n"
	SizeSmall  Size = "s"
	SizeMedium Size = "m"
	SizeLarge  Size = "l"
	SizeXLarge Size = "x"
)

// Entry describes a supported pretrained weight file.
type Entry struct {
	ID          string
	Family      Family
	Size        Size
	Description string
	Recommended bool
}

// URL returns the download URL of the weights below baseURL.
func (e Entry) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + e.ID
}

var entries = []Entry{
	{ID: "yolo11n.pt", Family: FamilyYOLO11, Size: SizeNano, Description: "YOLO11 nano", Recommended: true},
	{ID: "yolo11s.pt", Family: FamilyYOLO11, Size: SizeSmall, Description: "YOLO11 small"},
	{ID: "yolo11m.pt", Family: FamilyYOLO11, Size: SizeMedium, Description: "YOLO11 medium"},
	{ID: "yolo11l.pt", Family: FamilyYOLO11, Size: SizeLarge, Description: "YOLO11 large"},
	{ID: "yolo11x.pt", Family: FamilyYOLO11, Size: SizeXLarge, Description: "YOLO11 extra large"},
	{ID: "yolov8n.pt", Family: FamilyYOLOv8, Size: SizeNano, Description: "YOLOv8 nano (alternative)"},
	{ID: "yolov8s.pt", Family: FamilyYOLOv8, Size: SizeSmall, Description: "YOLOv8 small"},
	{ID: "yolov8m.pt", Family: FamilyYOLOv8, Size: SizeMedium, Description: "YOLOv8 medium"},
	{ID: "yolov8l.pt", Family: FamilyYOLOv8, Size: SizeLarge, Description: "YOLOv8 large"},
	{ID: "yolov8x.pt", Family: FamilyYOLOv8, Size: SizeXLarge, Description: "YOLOv8 extra large"},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Entry, error) {
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return entries[i], nil
}

// Has reports whether id is in the catalog.
func Has(id string) bool {
	_, err := Lookup(id)
	return err == nil
}

// All returns a copy of every catalog entry in display order.
func All() []Entry {
	return slices.Clone(entries)
}
