package content

import "github.com/inkspect/inkspect/pkg/logging"

// GraphicsState is one frame of the PDF graphics state as far as color
// analysis needs it: transform, fill/stroke color and colorspace,
// constant alpha, and the in-progress path.
type GraphicsState struct {
	CTM            Matrix // Current Transformation Matrix
	TextMatrix     Matrix
	TextLineMatrix Matrix
	Leading        float64
	FontName       string
	FontSize       float64

	// Color state. A nil color means no color operator has run yet.
	FillColor   []float64
	StrokeColor []float64
	FillCS      *ColorSpace
	StrokeCS    *ColorSpace

	// Constant alpha from the active ExtGState (0-1).
	FillAlpha   float64
	StrokeAlpha float64

	// Product of the alphas of every enclosing transparency group.
	GroupAlpha float64

	// Path state
	CurrentPath  []PathElement
	CurrentPoint Point
}

// NewGraphicsState creates a graphics state with PDF defaults.
func NewGraphicsState() *GraphicsState {
	return &GraphicsState{
		CTM:            IdentityMatrix(),
		TextMatrix:     IdentityMatrix(),
		TextLineMatrix: IdentityMatrix(),
		FillAlpha:      1,
		StrokeAlpha:    1,
		GroupAlpha:     1,
		CurrentPath:    []PathElement{},
	}
}

// Clone creates a copy of the graphics state.
func (gs *GraphicsState) Clone() *GraphicsState {
	newState := *gs

	// Deep copy slices
	if gs.FillColor != nil {
		newState.FillColor = make([]float64, len(gs.FillColor))
		copy(newState.FillColor, gs.FillColor)
	}

	if gs.StrokeColor != nil {
		newState.StrokeColor = make([]float64, len(gs.StrokeColor))
		copy(newState.StrokeColor, gs.StrokeColor)
	}

	if gs.CurrentPath != nil {
		newState.CurrentPath = make([]PathElement, len(gs.CurrentPath))
		copy(newState.CurrentPath, gs.CurrentPath)
	}

	return &newState
}

// Matrix represents a 2D affine transformation matrix.
type Matrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns an identity matrix.
func IdentityMatrix() Matrix {
	return Matrix{A: 1, B: 0, C: 0, D: 1, E: 0, F: 0}
}

// Multiply multiplies two matrices.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.C,
		B: m.A*other.B + m.B*other.D,
		C: m.C*other.A + m.D*other.C,
		D: m.C*other.B + m.D*other.D,
		E: m.E*other.A + m.F*other.C + other.E,
		F: m.E*other.B + m.F*other.D + other.F,
	}
}

// Transform applies the matrix transformation to a point.
func (m Matrix) Transform(x, y float64) (float64, float64) {
	newX := m.A*x + m.C*y + m.E
	newY := m.B*x + m.D*y + m.F
	return newX, newY
}

// Inverse returns the inverse matrix. A singular matrix inverts to
// the identity.
func (m Matrix) Inverse() Matrix {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return IdentityMatrix()
	}
	inv := Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
	}
	inv.E = -(m.E*inv.A + m.F*inv.C)
	inv.F = -(m.E*inv.B + m.F*inv.D)
	return inv
}

// Scale creates a scaling matrix.
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, B: 0, C: 0, D: sy, E: 0, F: 0}
}

// Translate creates a translation matrix.
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, B: 0, C: 0, D: 1, E: tx, F: ty}
}

// Point represents a 2D point.
type Point struct {
	X, Y float64
}

// PathElement represents an element in a path.
type PathElement struct {
	Type   string // "move", "line", "curve", "rect", "close"
	Points []Point
}

// StateStack manages the graphics state stack for save/restore
// operations. The root frame can never be popped.
type StateStack struct {
	states []*GraphicsState
}

// NewStateStack creates a stack holding the implicit root frame.
func NewStateStack() *StateStack {
	return &StateStack{
		states: []*GraphicsState{NewGraphicsState()},
	}
}

// Current returns the current graphics state.
func (s *StateStack) Current() *GraphicsState {
	return s.states[len(s.states)-1]
}

// Save pushes a clone of the current graphics state.
func (s *StateStack) Save() {
	s.states = append(s.states, s.Current().Clone())
}

// Restore pops the top graphics state. Restoring past the root frame
// returns ErrStateUnderflow and leaves the stack unchanged.
func (s *StateStack) Restore() error {
	if len(s.states) <= 1 {
		logging.Logger().Warn("unbalanced restore, ignoring")
		return ErrStateUnderflow
	}
	s.states = s.states[:len(s.states)-1]
	return nil
}

// Depth returns the number of frames on the stack.
func (s *StateStack) Depth() int {
	return len(s.states)
}
