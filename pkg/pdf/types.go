package pdf

// Rect is an axis-aligned rectangle in device units (PDF points),
// lower-left origin.
type Rect struct {
	X0 float64 // Left
	Y0 float64 // Bottom
	X1 float64 // Right
	Y1 float64 // Top
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// ContainsPoint checks if a point is within the rectangle, allowing
// tol units of slack on every edge.
func (r Rect) ContainsPoint(x, y, tol float64) bool {
	return x >= r.X0-tol && x <= r.X1+tol && y >= r.Y0-tol && y <= r.Y1+tol
}

// ContainsRect checks if other lies entirely within the rectangle,
// allowing tol units of slack on every edge.
func (r Rect) ContainsRect(other Rect, tol float64) bool {
	return other.X0 >= r.X0-tol && other.X1 <= r.X1+tol &&
		other.Y0 >= r.Y0-tol && other.Y1 <= r.Y1+tol
}
