package geo

// Coordinate is a point on the integer planar grid shared by riders and chairs.
type Coordinate struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

// Equal reports whether both axes match exactly.
func (coordinate Coordinate) Equal(other Coordinate) bool {
	return coordinate.Latitude == other.Latitude && coordinate.Longitude == other.Longitude
}

// DistanceTo returns the Manhattan distance between two coordinates.
func (coordinate Coordinate) DistanceTo(other Coordinate) int {
	return abs(coordinate.Latitude-other.Latitude) + abs(coordinate.Longitude-other.Longitude)
}

// ManhattanDistance is the package-level form of DistanceTo.
func ManhattanDistance(a, b Coordinate) int {
	return a.DistanceTo(b)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
