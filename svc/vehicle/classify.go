package vehicle

import (
	"math"
	"strings"
)

// Vehicle types.
const (
	TypeVan = "van"
	TypeCar = "car"
)

// Category thresholds.
const (
	vanMaxLengthCm = 480.0
	volume1Below   = 9.7
	volume2Max     = 11.3
	volume3Max     = 13.7
)

// Dimensions are the provider's outer dimensions in millimetres.
type Dimensions struct {
	LengthMm float64 `json:"LengthMm"`
	WidthMm  float64 `json:"WidthMm"`
	HeightMm float64 `json:"HeightMm"`
}

// Complete reports whether all three dimensions are present.
func (d Dimensions) Complete() bool {
	return d.LengthMm > 0 && d.WidthMm > 0 && d.HeightMm > 0
}

// Classification is the pricing band of a vehicle.
// LengthCm is set for vans, VolumeM3 for everything else.
type Classification struct {
	Type     string   `json:"type"`
	Category string   `json:"category"`
	LengthCm *float64 `json:"lengthCm,omitempty"`
	VolumeM3 *float64 `json:"volumeM3,omitempty"`
}

// Classify bands a vehicle. bodyType is matched case-insensitively against "van".
func Classify(d Dimensions, bodyType string) (Classification, error) {
	if !d.Complete() {
		return Classification{}, ErrMissingDimensions
	}

	if strings.Contains(strings.ToLower(bodyType), "van") {
		lengthCm := d.LengthMm / 10
		category := "Van 2/3"
		if lengthCm <= vanMaxLengthCm {
			category = "Van 1"
		}
		rounded := round(lengthCm, 1)
		return Classification{Type: TypeVan, Category: category, LengthCm: &rounded}, nil
	}

	volume := d.LengthMm * d.WidthMm * d.HeightMm / 1e9
	var category string
	switch {
	case volume < volume1Below:
		category = "Volume 1"
	case volume <= volume2Max:
		category = "Volume 2"
	case volume <= volume3Max:
		category = "Volume 3"
	default:
		category = "Volume 4"
	}
	rounded := round(volume, 2)
	return Classification{Type: TypeCar, Category: category, VolumeM3: &rounded}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
