package domain

import "math"

// MaxIntensity caps the fill opacity of a highlighted county.
const MaxIntensity = 1.0

const (
	outlineColor   = "#333"
	outlineWeight  = 0.5
	highlightColor = "red"
)

// Style is the per-feature style descriptor consumed by the map layer.
type Style struct {
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
}

// NeutralStyle is the transparent outline-only style.
func NeutralStyle() Style {
	return Style{FillOpacity: 0, Color: outlineColor, Weight: outlineWeight}
}

// Intensity maps a signed contribution to a fill opacity in [0, MaxIntensity].
func Intensity(contribution float64) float64 {
	if math.IsNaN(contribution) {
		return 0
	}
	return math.Min(math.Abs(contribution), MaxIntensity)
}

// StyleFor computes the style of one county for the active factor. A nil
// record, an empty active factor, a record not referencing the factor, or a
// zero contribution all yield NeutralStyle.
func StyleFor(record *CountyRecord, active string) Style {
	if record == nil || active == "" {
		return NeutralStyle()
	}
	value, ok := record.Contribution(active)
	if !ok {
		return NeutralStyle()
	}
	intensity := Intensity(value)
	if intensity == 0 {
		return NeutralStyle()
	}
	return Style{
		FillColor:   highlightColor,
		FillOpacity: intensity,
		Color:       outlineColor,
		Weight:      outlineWeight,
	}
}
