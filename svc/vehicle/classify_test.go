package vehicle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/svc/vehicle"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("van bands by length", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name     string
			length   float64
			body     string
			category string
			cm       float64
		}{
			{"short panel van", 4400, "Panel Van", "Van 1", 440},
			{"boundary is van 1", 4800, "VAN", "Van 1", 480},
			{"just over boundary", 4801, "van", "Van 2/3", 480.1},
			{"long wheelbase", 5932, "Panel Van LWB", "Van 2/3", 593.2},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				c, err := vehicle.Classify(vehicle.Dimensions{LengthMm: tc.length, WidthMm: 2000, HeightMm: 2500}, tc.body)
				require.NoError(t, err)
				assert.Equal(t, vehicle.TypeVan, c.Type)
				assert.Equal(t, tc.category, c.Category)
				require.NotNil(t, c.LengthCm)
				assert.InDelta(t, tc.cm, *c.LengthCm, 0.001)
				assert.Nil(t, c.VolumeM3)
			})
		}
	})

	t.Run("cars band by volume", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name     string
			dims     vehicle.Dimensions
			category string
			volume   float64
		}{
			{"hatchback", vehicle.Dimensions{LengthMm: 4000, WidthMm: 1700, HeightMm: 1400}, "Volume 1", 9.52},
			{"exactly 9.7 is volume 2", vehicle.Dimensions{LengthMm: 5000, WidthMm: 1000, HeightMm: 1940}, "Volume 2", 9.7},
			{"exactly 11.3 is volume 2", vehicle.Dimensions{LengthMm: 5000, WidthMm: 1000, HeightMm: 2260}, "Volume 2", 11.3},
			{"estate", vehicle.Dimensions{LengthMm: 4900, WidthMm: 1850, HeightMm: 1500}, "Volume 3", 13.6},
			{"exactly 13.7 is volume 3", vehicle.Dimensions{LengthMm: 5000, WidthMm: 1000, HeightMm: 2740}, "Volume 3", 13.7},
			{"large suv", vehicle.Dimensions{LengthMm: 5100, WidthMm: 2000, HeightMm: 1800}, "Volume 4", 18.36},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				c, err := vehicle.Classify(tc.dims, "Hatchback")
				require.NoError(t, err)
				assert.Equal(t, vehicle.TypeCar, c.Type)
				assert.Equal(t, tc.category, c.Category)
				require.NotNil(t, c.VolumeM3)
				assert.InDelta(t, tc.volume, *c.VolumeM3, 0.011)
				assert.Nil(t, c.LengthCm)
			})
		}
	})

	t.Run("missing dimension", func(t *testing.T) {
		t.Parallel()

		for _, d := range []vehicle.Dimensions{
			{WidthMm: 1800, HeightMm: 1500},
			{LengthMm: 4000, HeightMm: 1500},
			{LengthMm: 4000, WidthMm: 1800},
			{},
		} {
			_, err := vehicle.Classify(d, "Saloon")
			assert.ErrorIs(t, err, vehicle.ErrMissingDimensions)
		}
	})
}
