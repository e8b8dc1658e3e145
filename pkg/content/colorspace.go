package content

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/inkspect/inkspect/pkg/logging"
	"github.com/inkspect/inkspect/pkg/pdf"
)

// ColorModel is the canonical reporting model of a colorspace.
type ColorModel int

const (
	ModelGray ColorModel = iota
	ModelRGB
	ModelCMYK
)

func (m ColorModel) String() string {
	switch m {
	case ModelRGB:
		return "RGB"
	case ModelCMYK:
		return "CMYK"
	default:
		return "Gray"
	}
}

// components returns the raw operand count of the model.
func (m ColorModel) components() int {
	switch m {
	case ModelRGB:
		return 3
	case ModelCMYK:
		return 4
	default:
		return 1
	}
}

type csKind int

const (
	csDirect csKind = iota
	csIndexed
	csSeparation
)

// ColorSpace is a resolved colorspace: a canonical model plus the
// indirection needed to normalize raw operand values. Instances are
// resolved once per resource scope and cached for its lifetime.
type ColorSpace struct {
	kind  csKind
	Model ColorModel

	// Indexed
	base   *ColorSpace
	lookup []byte
	hiVal  int

	// Separation/DeviceN operand count (number of tint channels)
	tints int

	Name string // resource name or family, for diagnostics
}

// DeviceColorSpace returns the direct colorspace for a device model.
func DeviceColorSpace(m ColorModel) *ColorSpace {
	return &ColorSpace{kind: csDirect, Model: m, Name: "Device" + m.String()}
}

// Components returns how many numeric operands a color value in this
// colorspace carries.
func (cs *ColorSpace) Components() int {
	switch cs.kind {
	case csIndexed:
		return 1
	case csSeparation:
		return cs.tints
	default:
		return cs.Model.components()
	}
}

// Normalize maps raw operand values to the reporting convention:
// CMYK and Gray channels scale to 0-100, RGB channels to 0-255.
// Indexed values resolve through the palette; separation tints
// approximate through the alternate model.
func (cs *ColorSpace) Normalize(raw []float64) ([]int, error) {
	switch cs.kind {
	case csIndexed:
		return cs.normalizeIndexed(raw)
	case csSeparation:
		return cs.normalizeTint(raw)
	default:
		return normalizeDirect(cs.Model, raw)
	}
}

func normalizeDirect(m ColorModel, raw []float64) ([]int, error) {
	if len(raw) < m.components() {
		return nil, fmt.Errorf("%w: %s needs %d components, got %d",
			ErrMalformedOperands, m, m.components(), len(raw))
	}
	out := make([]int, m.components())
	for i := range out {
		switch m {
		case ModelRGB:
			out[i] = roundHalfUp(clamp01(raw[i]) * 255)
		default:
			out[i] = roundHalfUp(clamp01(raw[i]) * 100)
		}
	}
	return out, nil
}

// normalizeIndexed looks the integer index up in the palette and
// normalizes the base-model components found there.
func (cs *ColorSpace) normalizeIndexed(raw []float64) ([]int, error) {
	if len(raw) < 1 || cs.base == nil {
		return nil, fmt.Errorf("%w: indexed lookup without index", ErrMalformedOperands)
	}
	idx := int(raw[0])
	if idx < 0 {
		idx = 0
	}
	if cs.hiVal > 0 && idx > cs.hiVal {
		idx = cs.hiVal
	}
	n := cs.base.Model.components()
	off := idx * n
	if off+n > len(cs.lookup) {
		return nil, fmt.Errorf("%w: palette index %d beyond lookup table", ErrUnresolvableColorSpace, idx)
	}
	comps := make([]float64, n)
	for i := 0; i < n; i++ {
		comps[i] = float64(cs.lookup[off+i]) / 255
	}
	return normalizeDirect(cs.base.Model, comps)
}

// normalizeTint approximates a separation tint through the alternate
// model: tint is ink coverage, so a CMYK alternate maps to pure K and
// additive models darken toward full coverage.
func (cs *ColorSpace) normalizeTint(raw []float64) ([]int, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: separation without tint", ErrMalformedOperands)
	}
	t := clamp01(raw[0])
	switch cs.Model {
	case ModelCMYK:
		return []int{0, 0, 0, roundHalfUp(t * 100)}, nil
	case ModelRGB:
		v := roundHalfUp((1 - t) * 255)
		return []int{v, v, v}, nil
	default:
		return []int{roundHalfUp((1 - t) * 100)}, nil
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundHalfUp(v float64) int {
	return int(math.Round(v))
}

// csCache caches resolved colorspaces per resource scope.
type csCache map[string]*ColorSpace

// resolveColorSpaceName resolves a name operand of cs/CS: device
// families directly, anything else through the scope's ColorSpace
// resource dictionary.
func resolveColorSpaceName(page *pdf.Page, res types.Dict, name string, cache csCache) (*ColorSpace, error) {
	switch name {
	case "DeviceGray", "CalGray", "G":
		return DeviceColorSpace(ModelGray), nil
	case "DeviceRGB", "CalRGB", "RGB":
		return DeviceColorSpace(ModelRGB), nil
	case "DeviceCMYK", "CMYK":
		return DeviceColorSpace(ModelCMYK), nil
	case "Pattern":
		// Pattern paint is resolved per scn operand; the underlying
		// colorspace is unknown here.
		return nil, fmt.Errorf("%w: pattern colorspace", ErrUnresolvableColorSpace)
	}

	if cs, ok := cache[name]; ok {
		return cs, nil
	}

	if res == nil {
		return nil, fmt.Errorf("%w: %s (no resource dictionary)", ErrUnresolvableColorSpace, name)
	}
	csDictObj, found := res.Find("ColorSpace")
	if !found {
		return nil, fmt.Errorf("%w: %s (no ColorSpace resources)", ErrUnresolvableColorSpace, name)
	}
	csDict, err := page.ResolveDict(csDictObj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvableColorSpace, name, err)
	}
	entry, found := csDict.Find(name)
	if !found {
		return nil, fmt.Errorf("%w: %s not in ColorSpace resources", ErrUnresolvableColorSpace, name)
	}

	cs, err := resolveColorSpaceObject(page, entry, 0)
	if err != nil {
		return nil, err
	}
	cs.Name = name
	cache[name] = cs
	return cs, nil
}

// Indirection chains deeper than this are treated as unresolvable.
const maxCSDepth = 8

// resolveColorSpaceObject resolves a colorspace definition object:
// a bare name or an array form (ICCBased, Indexed, Separation,
// DeviceN).
func resolveColorSpaceObject(page *pdf.Page, obj types.Object, depth int) (*ColorSpace, error) {
	if depth > maxCSDepth {
		return nil, fmt.Errorf("%w: indirection too deep", ErrUnresolvableColorSpace)
	}

	resolved, err := page.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvableColorSpace, err)
	}

	switch v := resolved.(type) {
	case types.Name:
		return resolveDeviceFamily(string(v))

	case types.Array:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty colorspace array", ErrUnresolvableColorSpace)
		}
		family, ok := v[0].(types.Name)
		if !ok {
			return nil, fmt.Errorf("%w: colorspace array head %T", ErrUnresolvableColorSpace, v[0])
		}
		switch string(family) {
		case "ICCBased":
			return resolveICCBased(page, v)
		case "Indexed", "I":
			return resolveIndexed(page, v, depth)
		case "Separation":
			return resolveSeparation(page, v, depth, 1)
		case "DeviceN":
			return resolveDeviceN(page, v, depth)
		case "CalGray":
			return DeviceColorSpace(ModelGray), nil
		case "CalRGB", "Lab":
			return DeviceColorSpace(ModelRGB), nil
		default:
			return resolveDeviceFamily(string(family))
		}
	}

	return nil, fmt.Errorf("%w: unexpected colorspace object %T", ErrUnresolvableColorSpace, resolved)
}

func resolveDeviceFamily(name string) (*ColorSpace, error) {
	switch name {
	case "DeviceGray", "CalGray":
		return DeviceColorSpace(ModelGray), nil
	case "DeviceRGB", "CalRGB":
		return DeviceColorSpace(ModelRGB), nil
	case "DeviceCMYK":
		return DeviceColorSpace(ModelCMYK), nil
	}
	return nil, fmt.Errorf("%w: unknown colorspace family %s", ErrUnresolvableColorSpace, name)
}

// resolveICCBased classifies an ICC profile stream by its component
// count: 1 is Gray, 3 is RGB, 4 is CMYK.
func resolveICCBased(page *pdf.Page, arr types.Array) (*ColorSpace, error) {
	if len(arr) < 2 {
		return nil, fmt.Errorf("%w: ICCBased without stream", ErrUnresolvableColorSpace)
	}
	sd, err := page.ResolveStreamDict(arr[1])
	if err != nil || sd == nil {
		return nil, fmt.Errorf("%w: ICCBased stream: %v", ErrUnresolvableColorSpace, err)
	}
	nObj, found := sd.Dict.Find("N")
	if !found {
		return nil, fmt.Errorf("%w: ICCBased stream missing N", ErrUnresolvableColorSpace)
	}
	n, ok := toInt(nObj)
	if !ok {
		return nil, fmt.Errorf("%w: ICCBased N is %T", ErrUnresolvableColorSpace, nObj)
	}
	switch n {
	case 1:
		return &ColorSpace{kind: csDirect, Model: ModelGray, Name: "ICCBased"}, nil
	case 3:
		return &ColorSpace{kind: csDirect, Model: ModelRGB, Name: "ICCBased"}, nil
	case 4:
		return &ColorSpace{kind: csDirect, Model: ModelCMYK, Name: "ICCBased"}, nil
	}
	return nil, fmt.Errorf("%w: ICC profile with %d components", ErrUnresolvableColorSpace, n)
}

// resolveIndexed builds [/Indexed base hival lookup]: base colorspace
// plus a byte palette keyed by an integer index operand.
func resolveIndexed(page *pdf.Page, arr types.Array, depth int) (*ColorSpace, error) {
	if len(arr) < 4 {
		return nil, fmt.Errorf("%w: indexed array needs 4 elements", ErrUnresolvableColorSpace)
	}
	base, err := resolveColorSpaceObject(page, arr[1], depth+1)
	if err != nil {
		return nil, err
	}
	hiVal, ok := toInt(arr[2])
	if !ok {
		return nil, fmt.Errorf("%w: indexed hival is %T", ErrUnresolvableColorSpace, arr[2])
	}
	lookup, err := resolveLookupBytes(page, arr[3])
	if err != nil {
		return nil, err
	}
	return &ColorSpace{
		kind:   csIndexed,
		Model:  base.Model,
		base:   base,
		hiVal:  hiVal,
		lookup: lookup,
		Name:   "Indexed",
	}, nil
}

// resolveLookupBytes extracts the palette bytes from a string literal,
// hex literal or stream.
func resolveLookupBytes(page *pdf.Page, obj types.Object) ([]byte, error) {
	resolved, err := page.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: indexed lookup: %v", ErrUnresolvableColorSpace, err)
	}
	switch v := resolved.(type) {
	case types.StringLiteral:
		b, err := types.Unescape(v.Value())
		if err != nil {
			return []byte(v.Value()), nil
		}
		return b, nil
	case types.HexLiteral:
		b, err := v.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: indexed hex lookup: %v", ErrUnresolvableColorSpace, err)
		}
		return b, nil
	case types.StreamDict:
		return page.DecodeStream(v)
	case *types.StreamDict:
		return page.DecodeStream(v)
	}
	return nil, fmt.Errorf("%w: indexed lookup is %T", ErrUnresolvableColorSpace, resolved)
}

// resolveSeparation builds [/Separation name alternate tint]: the tint
// transform function is not evaluated; tints approximate through the
// alternate model (see Normalize).
func resolveSeparation(page *pdf.Page, arr types.Array, depth, tints int) (*ColorSpace, error) {
	if len(arr) < 3 {
		return nil, fmt.Errorf("%w: separation array needs alternate", ErrUnresolvableColorSpace)
	}
	alt, err := resolveColorSpaceObject(page, arr[2], depth+1)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("separation tint transform approximated through alternate",
		"alternate", alt.Model.String())
	return &ColorSpace{kind: csSeparation, Model: alt.Model, tints: tints, Name: "Separation"}, nil
}

// resolveDeviceN treats [/DeviceN names alternate tint] like a
// multi-channel separation; the first tint drives the approximation.
func resolveDeviceN(page *pdf.Page, arr types.Array, depth int) (*ColorSpace, error) {
	tints := 1
	if len(arr) > 1 {
		if names, err := page.Resolve(arr[1]); err == nil {
			if nameArr, ok := names.(types.Array); ok && len(nameArr) > 0 {
				tints = len(nameArr)
			}
		}
	}
	cs, err := resolveSeparation(page, arr, depth, tints)
	if err != nil {
		return nil, err
	}
	cs.Name = "DeviceN"
	return cs, nil
}

func toInt(obj types.Object) (int, bool) {
	switch v := obj.(type) {
	case types.Integer:
		return int(v), true
	case types.Float:
		return int(v), true
	}
	return 0, false
}
