// Package fare computes ride fares on the integer grid.
package fare

import "isuride/internal/domain/geo"

// Calculator holds the configured fare constants.
type Calculator struct {
	InitialFare int
	PerDistance int
}

// NewCalculator returns a Calculator for the given constants.
func NewCalculator(initialFare, perDistance int) Calculator {
	return Calculator{InitialFare: initialFare, PerDistance: perDistance}
}

// Metered is the distance-dependent part of the fare.
func (calc Calculator) Metered(pickup, destination geo.Coordinate) int {
	return calc.PerDistance * geo.ManhattanDistance(pickup, destination)
}

// Total is the initial fare plus the metered fare reduced by discount, floored at zero.
func (calc Calculator) Total(pickup, destination geo.Coordinate, discount int) int {
	discounted := calc.Metered(pickup, destination) - discount
	if discounted < 0 {
		discounted = 0
	}
	return calc.InitialFare + discounted
}
