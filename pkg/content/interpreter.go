// Package content replays PDF content streams and emits one color
// event per painting or text-showing operation. It is the analysis
// core: a stack-based state machine over the operator stream with
// colorspace resolution, opacity tracking and millimeter geometry.
package content

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/inkspect/inkspect/pkg/logging"
	"github.com/inkspect/inkspect/pkg/pdf"
	"github.com/inkspect/inkspect/pkg/report"
)

// DefaultMaxFormDepth caps nested form XObject invocation. Circular
// form references fail the page instead of hanging.
const DefaultMaxFormDepth = 16

// resourceScope is one layer of resource-dictionary visibility: the
// page's own resources, or a form XObject's resources layered on top
// during Do recursion. Resolved colorspaces are cached per scope.
type resourceScope struct {
	res   types.Dict
	cache csCache
}

func newResourceScope(res types.Dict) *resourceScope {
	return &resourceScope{res: res, cache: csCache{}}
}

// Interpreter walks a page's operator stream and collects color
// events in stream order.
type Interpreter struct {
	page         *pdf.Page
	stack        *StateStack
	events       []report.ColorEvent
	warnings     []string
	maxFormDepth int
	unknownOps   map[string]int
}

// NewInterpreter creates an interpreter for one page.
func NewInterpreter(page *pdf.Page) *Interpreter {
	return &Interpreter{
		page:         page,
		stack:        NewStateStack(),
		maxFormDepth: DefaultMaxFormDepth,
		unknownOps:   map[string]int{},
	}
}

// SetMaxFormDepth overrides the form recursion cap.
func (in *Interpreter) SetMaxFormDepth(n int) {
	if n > 0 {
		in.maxFormDepth = n
	}
}

// Run replays the page's content stream and returns the color events
// in stream order. Recoverable stream irregularities are recorded as
// warnings; only form recursion beyond the cap is fatal for the page.
func (in *Interpreter) Run() ([]report.ColorEvent, error) {
	scope := newResourceScope(in.page.Resources)
	if err := in.processStream(in.page.Content, scope, 0); err != nil {
		return in.events, err
	}
	if len(in.unknownOps) > 0 {
		logging.Logger().Debug("skipped unrecognized operators",
			"page", in.page.Number, "ops", in.unknownOps)
	}
	return in.events, nil
}

// Warnings returns the recoverable irregularities seen during Run.
func (in *Interpreter) Warnings() []string {
	return in.warnings
}

func (in *Interpreter) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	in.warnings = append(in.warnings, msg)
	logging.Logger().Warn(msg, "page", in.page.Number)
}

// processStream lexes one content stream, buffering operands until an
// operator dispatches them. Unknown operators are skipped; a fatal
// error aborts the stream.
func (in *Interpreter) processStream(data []byte, scope *resourceScope, depth int) error {
	lexer := NewContentLexer(data)
	operands := []interface{}{}

	for {
		token, err := lexer.NextToken()
		if err != nil {
			break // end of stream
		}

		if token.Type != TokenOperator {
			operands = append(operands, token.Value)
			continue
		}

		op := token.Value.(string)
		if op == "BI" {
			// Inline image: binary payload must not reach the lexer.
			lexer.SkipInlineImage()
			operands = operands[:0]
			continue
		}

		err = in.processOperator(op, operands, scope, depth)
		operands = operands[:0]
		if err != nil {
			return err
		}
	}

	return nil
}

// processOperator dispatches one operator against the current state.
func (in *Interpreter) processOperator(op string, operands []interface{}, scope *resourceScope, depth int) error {
	state := in.stack.Current()

	switch op {
	// Graphics state operators
	case "q":
		in.stack.Save()

	case "Q":
		if err := in.stack.Restore(); err != nil {
			in.warnf("unbalanced Q ignored")
		}

	case "cm":
		nums, ok := in.requireFloats(op, operands, 6)
		if !ok {
			return nil
		}
		m := Matrix{A: nums[0], B: nums[1], C: nums[2], D: nums[3], E: nums[4], F: nums[5]}
		state.CTM = m.Multiply(state.CTM)

	case "gs":
		in.applyExtGState(state, operands, scope)

	// Colorspace selection
	case "cs":
		in.selectColorSpace(state, operands, scope, false)

	case "CS":
		in.selectColorSpace(state, operands, scope, true)

	// Color value setting
	case "sc", "scn":
		in.setColorInSpace(state, operands, false)

	case "SC", "SCN":
		in.setColorInSpace(state, operands, true)

	case "rg":
		if nums, ok := in.requireFloats(op, operands, 3); ok {
			state.FillCS = DeviceColorSpace(ModelRGB)
			state.FillColor = nums
		}

	case "RG":
		if nums, ok := in.requireFloats(op, operands, 3); ok {
			state.StrokeCS = DeviceColorSpace(ModelRGB)
			state.StrokeColor = nums
		}

	case "k":
		if nums, ok := in.requireFloats(op, operands, 4); ok {
			state.FillCS = DeviceColorSpace(ModelCMYK)
			state.FillColor = nums
		}

	case "K":
		if nums, ok := in.requireFloats(op, operands, 4); ok {
			state.StrokeCS = DeviceColorSpace(ModelCMYK)
			state.StrokeColor = nums
		}

	case "g":
		// Gray shorthand converts to CMYK ink coverage, matching the
		// downstream palette convention (0 g == 0 0 0 1 k).
		if nums, ok := in.requireFloats(op, operands, 1); ok {
			state.FillCS = DeviceColorSpace(ModelCMYK)
			state.FillColor = []float64{0, 0, 0, 1 - clamp01(nums[0])}
		}

	case "G":
		if nums, ok := in.requireFloats(op, operands, 1); ok {
			state.StrokeCS = DeviceColorSpace(ModelCMYK)
			state.StrokeColor = []float64{0, 0, 0, 1 - clamp01(nums[0])}
		}

	// Path construction operators
	case "m":
		if nums, ok := in.requireFloats(op, operands, 2); ok {
			x, y := state.CTM.Transform(nums[0], nums[1])
			state.CurrentPoint = Point{X: x, Y: y}
			state.CurrentPath = append(state.CurrentPath, PathElement{
				Type:   "move",
				Points: []Point{{X: x, Y: y}},
			})
		}

	case "l":
		if nums, ok := in.requireFloats(op, operands, 2); ok {
			x, y := state.CTM.Transform(nums[0], nums[1])
			state.CurrentPoint = Point{X: x, Y: y}
			state.CurrentPath = append(state.CurrentPath, PathElement{
				Type:   "line",
				Points: []Point{{X: x, Y: y}},
			})
		}

	case "c":
		in.appendCurve(state, op, operands, 6)

	case "v", "y":
		in.appendCurve(state, op, operands, 4)

	case "re":
		if nums, ok := in.requireFloats(op, operands, 4); ok {
			x, y, w, h := nums[0], nums[1], nums[2], nums[3]
			corners := [][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
			pts := make([]Point, 0, 4)
			for _, c := range corners {
				cx, cy := state.CTM.Transform(c[0], c[1])
				pts = append(pts, Point{X: cx, Y: cy})
			}
			state.CurrentPoint = pts[0]
			state.CurrentPath = append(state.CurrentPath, PathElement{
				Type:   "rect",
				Points: pts,
			})
		}

	case "h":
		state.CurrentPath = append(state.CurrentPath, PathElement{Type: "close"})

	// Path painting operators
	case "f", "F", "f*":
		in.emitShape(state, true)
		state.CurrentPath = []PathElement{}

	case "S", "s":
		in.emitShape(state, false)
		state.CurrentPath = []PathElement{}

	case "B", "B*", "b", "b*":
		in.emitShape(state, true)
		in.emitShape(state, false)
		state.CurrentPath = []PathElement{}

	case "n":
		state.CurrentPath = []PathElement{}

	case "W", "W*":
		// Clipping path; the following paint-less n discards it.

	// Text operators
	case "BT":
		state.TextMatrix = IdentityMatrix()
		state.TextLineMatrix = IdentityMatrix()

	case "ET":

	case "Tf":
		if len(operands) == 2 {
			if name, ok := operands[0].(Name); ok {
				state.FontName = string(name)
			}
			state.FontSize = toFloat(operands[1])
		}

	case "TL":
		if nums, ok := in.requireFloats(op, operands, 1); ok {
			state.Leading = nums[0]
		}

	case "Td":
		if nums, ok := in.requireFloats(op, operands, 2); ok {
			state.TextLineMatrix = Translate(nums[0], nums[1]).Multiply(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix
		}

	case "TD":
		if nums, ok := in.requireFloats(op, operands, 2); ok {
			state.Leading = -nums[1]
			state.TextLineMatrix = Translate(nums[0], nums[1]).Multiply(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix
		}

	case "Tm":
		if nums, ok := in.requireFloats(op, operands, 6); ok {
			state.TextMatrix = Matrix{A: nums[0], B: nums[1], C: nums[2], D: nums[3], E: nums[4], F: nums[5]}
			state.TextLineMatrix = state.TextMatrix
		}

	case "T*":
		state.TextLineMatrix = Translate(0, -state.Leading).Multiply(state.TextLineMatrix)
		state.TextMatrix = state.TextLineMatrix

	case "Tj":
		if len(operands) == 1 {
			in.emitText(state, decodeTextOperand(operands[0]))
		} else {
			in.warnf("Tj with %d operands skipped", len(operands))
		}

	case "TJ":
		if len(operands) == 1 {
			if array, ok := operands[0].([]interface{}); ok {
				in.emitText(state, assembleTJ(array))
			}
		} else {
			in.warnf("TJ with %d operands skipped", len(operands))
		}

	case "'":
		state.TextLineMatrix = Translate(0, -state.Leading).Multiply(state.TextLineMatrix)
		state.TextMatrix = state.TextLineMatrix
		if len(operands) == 1 {
			in.emitText(state, decodeTextOperand(operands[0]))
		}

	case "\"":
		if len(operands) == 3 {
			state.TextLineMatrix = Translate(0, -state.Leading).Multiply(state.TextLineMatrix)
			state.TextMatrix = state.TextLineMatrix
			in.emitText(state, decodeTextOperand(operands[2]))
		} else {
			in.warnf("\" with %d operands skipped", len(operands))
		}

	// XObject invocation
	case "Do":
		return in.invokeXObject(operands, scope, depth)

	default:
		in.unknownOps[op]++
	}

	return nil
}

// requireFloats extracts n numeric operands, skipping the operator
// with a warning when the stream is malformed.
func (in *Interpreter) requireFloats(op string, operands []interface{}, n int) ([]float64, bool) {
	nums := make([]float64, 0, len(operands))
	for _, o := range operands {
		if f, ok := o.(float64); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) < n {
		in.warnf("operator %s needs %d numeric operands, got %d: skipped", op, n, len(nums))
		return nil, false
	}
	// Extra leading operands are tolerated; the last n bind.
	return nums[len(nums)-n:], true
}

// appendCurve records a Bezier segment. Control points participate in
// the bounding box, a safe overestimate for color placement.
func (in *Interpreter) appendCurve(state *GraphicsState, op string, operands []interface{}, n int) {
	nums, ok := in.requireFloats(op, operands, n)
	if !ok {
		return
	}
	pts := make([]Point, 0, n/2)
	for i := 0; i+1 < len(nums); i += 2 {
		x, y := state.CTM.Transform(nums[i], nums[i+1])
		pts = append(pts, Point{X: x, Y: y})
	}
	if len(pts) > 0 {
		state.CurrentPoint = pts[len(pts)-1]
	}
	state.CurrentPath = append(state.CurrentPath, PathElement{Type: "curve", Points: pts})
}

// selectColorSpace handles cs/CS: device families directly, named
// colorspaces through the scope's resources. Unresolvable references
// degrade to a single-channel approximation.
func (in *Interpreter) selectColorSpace(state *GraphicsState, operands []interface{}, scope *resourceScope, stroke bool) {
	if len(operands) < 1 {
		in.warnf("colorspace selection without name: skipped")
		return
	}
	name, ok := operands[len(operands)-1].(Name)
	if !ok {
		in.warnf("colorspace selection with %T operand: skipped", operands[len(operands)-1])
		return
	}

	cs, err := resolveColorSpaceName(in.page, scope.res, string(name), scope.cache)
	if err != nil {
		in.warnf("colorspace %s unresolvable, approximating as Gray: %v", name, err)
		cs = DeviceColorSpace(ModelGray)
		cs.Name = string(name)
	}

	if stroke {
		state.StrokeCS = cs
		state.StrokeColor = nil
	} else {
		state.FillCS = cs
		state.FillColor = nil
	}
}

// setColorInSpace handles sc/scn/SC/SCN against the active colorspace.
func (in *Interpreter) setColorInSpace(state *GraphicsState, operands []interface{}, stroke bool) {
	cs := state.FillCS
	if stroke {
		cs = state.StrokeCS
	}
	if cs == nil {
		in.warnf("color operator before colorspace selection: skipped")
		return
	}

	// scn with a trailing name selects a pattern; there is no numeric
	// color to report.
	if len(operands) > 0 {
		if _, isName := operands[len(operands)-1].(Name); isName {
			in.warnf("pattern paint %v not analyzed", operands[len(operands)-1])
			return
		}
	}

	nums := make([]float64, 0, len(operands))
	for _, o := range operands {
		if f, ok := o.(float64); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) < cs.Components() {
		in.warnf("color operator needs %d components for %s, got %d: skipped",
			cs.Components(), cs.Name, len(nums))
		return
	}
	nums = nums[len(nums)-cs.Components():]

	if stroke {
		state.StrokeColor = nums
	} else {
		state.FillColor = nums
	}
}

// applyExtGState handles gs: constant alpha and soft mask notes from
// the named extended graphics state.
func (in *Interpreter) applyExtGState(state *GraphicsState, operands []interface{}, scope *resourceScope) {
	if len(operands) < 1 {
		in.warnf("gs without name: skipped")
		return
	}
	name, ok := operands[len(operands)-1].(Name)
	if !ok {
		in.warnf("gs with %T operand: skipped", operands[len(operands)-1])
		return
	}
	if scope.res == nil {
		return
	}
	egsObj, found := scope.res.Find("ExtGState")
	if !found {
		return
	}
	egsDict, err := in.page.ResolveDict(egsObj)
	if err != nil {
		in.warnf("ExtGState resources unresolvable: %v", err)
		return
	}
	entryObj, found := egsDict.Find(string(name))
	if !found {
		in.warnf("ExtGState %s not found", name)
		return
	}
	entry, err := in.page.ResolveDict(entryObj)
	if err != nil {
		in.warnf("ExtGState %s unresolvable: %v", name, err)
		return
	}

	if ca, found := entry.Find("ca"); found {
		if v, ok := toFloat64(ca); ok {
			state.FillAlpha = clamp01(v)
		}
	}
	if ca, found := entry.Find("CA"); found {
		if v, ok := toFloat64(ca); ok {
			state.StrokeAlpha = clamp01(v)
		}
	}
	if sm, found := entry.Find("SMask"); found {
		if n, ok := sm.(types.Name); !ok || string(n) != "None" {
			logging.Logger().Debug("soft mask in ExtGState not analyzed",
				"gs", string(name), "page", in.page.Number)
		}
	}
}

// invokeXObject handles Do: form XObjects recurse with their own
// matrix and resource scope, images are out of scope.
func (in *Interpreter) invokeXObject(operands []interface{}, scope *resourceScope, depth int) error {
	if len(operands) < 1 {
		in.warnf("Do without name: skipped")
		return nil
	}
	name, ok := operands[len(operands)-1].(Name)
	if !ok {
		in.warnf("Do with %T operand: skipped", operands[len(operands)-1])
		return nil
	}
	if scope.res == nil {
		return nil
	}
	xobjsObj, found := scope.res.Find("XObject")
	if !found {
		in.warnf("XObject %s referenced without XObject resources", name)
		return nil
	}
	xobjs, err := in.page.ResolveDict(xobjsObj)
	if err != nil {
		in.warnf("XObject resources unresolvable: %v", err)
		return nil
	}
	entry, found := xobjs.Find(string(name))
	if !found {
		in.warnf("XObject %s not found", name)
		return nil
	}
	sd, err := in.page.ResolveStreamDict(entry)
	if err != nil || sd == nil {
		in.warnf("XObject %s unresolvable: %v", name, err)
		return nil
	}

	if sub, found := sd.Dict.Find("Subtype"); found {
		if subName, ok := sub.(types.Name); ok && string(subName) != "Form" {
			// Raster images carry no vector color.
			logging.Logger().Debug("skipping non-form XObject",
				"name", string(name), "subtype", string(subName))
			return nil
		}
	}

	if depth+1 > in.maxFormDepth {
		return fmt.Errorf("%w: form %s at depth %d", ErrRecursionLimit, name, depth+1)
	}

	content, err := in.page.DecodeStream(*sd)
	if err != nil {
		in.warnf("form %s content undecodable: %v", name, err)
		return nil
	}

	in.stack.Save()
	state := in.stack.Current()

	if mObj, found := sd.Dict.Find("Matrix"); found {
		if arr, err := in.page.Resolve(mObj); err == nil {
			if m, ok := matrixFromArray(arr); ok {
				state.CTM = m.Multiply(state.CTM)
			}
		}
	}

	// A transparency group composites as a unit with the invoking
	// constant alpha; alphas inside the group start fresh and
	// multiply against the accumulated product.
	if _, found := sd.Dict.Find("Group"); found {
		state.GroupAlpha *= state.FillAlpha
		state.FillAlpha = 1
		state.StrokeAlpha = 1
	}

	formScope := scope
	if resObj, found := sd.Dict.Find("Resources"); found {
		if res, err := in.page.ResolveDict(resObj); err == nil {
			formScope = newResourceScope(res)
		}
	}

	// The form paints into the caller's path-free context.
	state.CurrentPath = []PathElement{}

	runErr := in.processStream(content, formScope, depth+1)

	if err := in.stack.Restore(); err != nil {
		// The form consumed our save frame with stray Q operators.
		in.warnf("form %s unbalanced restore", name)
	}

	return runErr
}

// emitShape records a shape color event for the current path using
// fill or stroke state.
func (in *Interpreter) emitShape(state *GraphicsState, fill bool) {
	color, cs := state.StrokeColor, state.StrokeCS
	alpha := state.StrokeAlpha
	if fill {
		color, cs = state.FillColor, state.FillCS
		alpha = state.FillAlpha
	}
	if color == nil || cs == nil {
		return // nothing explicitly painted in color yet
	}

	rect, kind, ok := pathBounds(state.CurrentPath)
	if !ok {
		return // empty path paints nothing
	}

	value, err := cs.Normalize(color)
	if err != nil {
		in.warnf("color value %v in %s not normalizable: %v", color, cs.Name, err)
		return
	}

	in.events = append(in.events, report.ColorEvent{
		Colorspace:  cs.Model.String(),
		Value:       value,
		Opacity:     effectiveOpacity(state.GroupAlpha, alpha),
		OutOfBounds: !inBounds(in.page.MediaBox, rect),
		Bounds:      boundsMM(rect, kind),
		Kind:        report.KindShape,
	})
}

// emitText records a text color event at the current text origin.
func (in *Interpreter) emitText(state *GraphicsState, text string) {
	color, cs := state.FillColor, state.FillCS
	if color == nil || cs == nil {
		return
	}

	value, err := cs.Normalize(color)
	if err != nil {
		in.warnf("text color %v in %s not normalizable: %v", color, cs.Name, err)
		return
	}

	x, y := state.CTM.Transform(state.TextMatrix.E, state.TextMatrix.F)

	in.events = append(in.events, report.ColorEvent{
		Colorspace:  cs.Model.String(),
		Value:       value,
		Opacity:     effectiveOpacity(state.GroupAlpha, state.FillAlpha),
		OutOfBounds: !pointInBounds(in.page.MediaBox, x, y),
		Bounds:      textBoundsMM(x, y),
		Kind:        report.KindText,
		Text:        text,
	})

	// Advance the pen by a rough width so successive shows do not
	// stack on one origin. Exact metrics need font programs, which
	// stay opaque here.
	if state.FontSize > 0 {
		advance := float64(len(text)) * state.FontSize * 0.5
		state.TextMatrix = Translate(advance, 0).Multiply(state.TextMatrix)
	}
}

// effectiveOpacity applies the product law over the enclosing group
// alphas and the element's own constant alpha, as a rounded
// percentage.
func effectiveOpacity(groupAlpha, alpha float64) int {
	return roundHalfUp(clamp01(groupAlpha) * clamp01(alpha) * 100)
}

// decodeTextOperand extracts the shown string from a Tj/'/" operand.
func decodeTextOperand(operand interface{}) string {
	switch v := operand.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	}
	return ""
}

// assembleTJ joins the string parts of a TJ array, ignoring the
// positioning numbers.
func assembleTJ(array []interface{}) string {
	var out []byte
	for _, item := range array {
		switch v := item.(type) {
		case []byte:
			out = append(out, v...)
		case string:
			out = append(out, v...)
		}
	}
	return string(out)
}

func matrixFromArray(obj types.Object) (Matrix, bool) {
	arr, ok := obj.(types.Array)
	if !ok || len(arr) < 6 {
		return Matrix{}, false
	}
	nums := make([]float64, 0, 6)
	for _, item := range arr[:6] {
		v, ok := toFloat64(item)
		if !ok {
			return Matrix{}, false
		}
		nums = append(nums, v)
	}
	return Matrix{A: nums[0], B: nums[1], C: nums[2], D: nums[3], E: nums[4], F: nums[5]}, true
}

func toFloat64(obj types.Object) (float64, bool) {
	switch v := obj.(type) {
	case types.Float:
		return float64(v), true
	case types.Integer:
		return float64(v), true
	}
	return 0, false
}

func toFloat(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
