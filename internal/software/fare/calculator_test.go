package fare

import (
	"testing"

	"isuride/internal/domain/geo"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_Total(t *testing.T) {
	calc := NewCalculator(500, 100)
	origin := geo.Coordinate{}

	tests := []struct {
		name        string
		destination geo.Coordinate
		discount    int
		want        int
	}{
		{name: "discount larger than metered fare", destination: geo.Coordinate{Longitude: 10}, discount: 3000, want: 500},
		{name: "partial discount", destination: geo.Coordinate{Longitude: 30}, discount: 1500, want: 2000},
		{name: "no discount", destination: geo.Coordinate{Latitude: 3, Longitude: -4}, discount: 0, want: 1200},
		{name: "same point", destination: origin, discount: 0, want: 500},
		{name: "discount equals metered", destination: geo.Coordinate{Latitude: 5}, discount: 500, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.Total(origin, tt.destination, tt.discount))
		})
	}
}

func TestCalculator_Metered(t *testing.T) {
	calc := NewCalculator(500, 100)
	assert.Equal(t, 1000, calc.Metered(geo.Coordinate{}, geo.Coordinate{Longitude: 10}))
	assert.Equal(t, 1400, calc.Metered(geo.Coordinate{Latitude: -2, Longitude: 5}, geo.Coordinate{Latitude: 3, Longitude: -4}))
}

func TestCalculator_NeverBelowInitialFare(t *testing.T) {
	calc := NewCalculator(500, 100)
	for d := -50; d <= 50; d += 7 {
		for _, discount := range []int{0, 1, 99, 1000, 100000} {
			got := calc.Total(geo.Coordinate{}, geo.Coordinate{Latitude: d, Longitude: -d}, discount)
			assert.GreaterOrEqual(t, got, calc.InitialFare)
		}
	}
}
