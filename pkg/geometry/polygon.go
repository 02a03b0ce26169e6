package geometry

import "math"

// PolygonArea returns the unsigned area enclosed by a polygon using the
// shoelace formula. Fewer than three vertices enclose no area.
func PolygonArea(polygon []PointInt) float64 {
	if len(polygon) < 3 {
		return 0
	}

	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += float64(polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y)
	}
	return math.Abs(sum) / 2
}
