package content

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/inkspect/inkspect/pkg/pdf"
	"github.com/inkspect/inkspect/pkg/report"
)

// testPage wraps a raw content stream in a page with a 100x200pt
// boundary and optional resources. No pdfcpu context: direct resource
// objects resolve as themselves.
func testPage(content string, res types.Dict) *pdf.Page {
	return &pdf.Page{
		Number:    1,
		MediaBox:  pdf.Rect{X0: 0, Y0: 0, X1: 100, Y1: 200},
		Content:   []byte(content),
		Resources: res,
	}
}

func runContent(t *testing.T, content string, res types.Dict) []report.ColorEvent {
	t.Helper()
	interp := NewInterpreter(testPage(content, res))
	events, err := interp.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return events
}

func TestRectangleFillInBounds(t *testing.T) {
	// A fill covering the page boundary exactly is in-bounds.
	events := runContent(t, "0 0 0 1 k 0 0 100 200 re f", nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Colorspace != "CMYK" {
		t.Errorf("colorspace = %q", ev.Colorspace)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 100}, ev.Value); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
	if ev.Opacity != 100 {
		t.Errorf("opacity = %d", ev.Opacity)
	}
	if ev.OutOfBounds {
		t.Error("exact boundary match must be in-bounds")
	}
	if ev.Bounds.Type != report.BoundsRectangle {
		t.Errorf("bounds type = %q", ev.Bounds.Type)
	}
	if ev.Kind != report.KindShape {
		t.Errorf("kind = %q", ev.Kind)
	}
}

func TestRectangleTranslatedOutOfBounds(t *testing.T) {
	// The same rectangle shifted right overflows the boundary.
	events := runContent(t, "1 0 0 1 50 0 cm 0 0 0 1 k 0 0 100 200 re f", nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].OutOfBounds {
		t.Error("partially overflowing rectangle must be out-of-bounds")
	}
}

func TestSaveRestoreIsolatesColor(t *testing.T) {
	// Color set inside q..Q does not leak to the outer fill.
	stream := "0 0 0 1 k q 1 0 0 rg Q 10 10 20 20 re f"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Colorspace != "CMYK" {
		t.Errorf("colorspace after Q = %q, want CMYK", events[0].Colorspace)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 100}, events[0].Value); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
}

func TestMatrixInverseRoundTripThroughCm(t *testing.T) {
	// cm followed by its exact inverse leaves geometry unchanged.
	base := runContent(t, "0 0 0 1 k 10 10 20 20 re f", nil)
	roundTrip := runContent(t,
		"2 0 0 2 5 7 cm 0.5 0 0 0.5 -2.5 -3.5 cm 0 0 0 1 k 10 10 20 20 re f", nil)

	if len(base) != 1 || len(roundTrip) != 1 {
		t.Fatalf("expected 1 event each, got %d and %d", len(base), len(roundTrip))
	}
	if diff := cmp.Diff(base[0].Bounds, roundTrip[0].Bounds); diff != "" {
		t.Errorf("bounds after cm round trip (-want +got):\n%s", diff)
	}
}

func TestUnbalancedRestoreRecovers(t *testing.T) {
	// Q on the root frame is ignored; later operators still run.
	interp := NewInterpreter(testPage("Q Q 0 0 0 1 k 0 0 10 10 re f", nil))
	events, err := interp.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after unbalanced Q, got %d", len(events))
	}
	if len(interp.Warnings()) == 0 {
		t.Error("unbalanced Q must record a warning")
	}
}

func TestMalformedOperandsSkipOperator(t *testing.T) {
	// k with 2 operands is skipped; the later rg fill still paints.
	interp := NewInterpreter(testPage("0 1 k 1 1 1 rg 0 0 10 10 re f", nil))
	events, err := interp.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Colorspace != "RGB" {
		t.Errorf("colorspace = %q, want RGB", events[0].Colorspace)
	}
	if len(interp.Warnings()) == 0 {
		t.Error("malformed k must record a warning")
	}
}

func TestGrayShorthandConvertsToCMYK(t *testing.T) {
	events := runContent(t, "0 g 0 0 10 10 re f", nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Colorspace != "CMYK" {
		t.Errorf("colorspace = %q, want CMYK", events[0].Colorspace)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 100}, events[0].Value); diff != "" {
		t.Errorf("0 g (-want +got):\n%s", diff)
	}
}

func TestStrokeUsesStrokeState(t *testing.T) {
	events := runContent(t, "1 0 0 RG 0 0 0 1 k 10 10 20 20 re S", nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if diff := cmp.Diff([]int{255, 0, 0}, events[0].Value); diff != "" {
		t.Errorf("stroke value (-want +got):\n%s", diff)
	}
}

func TestFillStrokeEmitsBoth(t *testing.T) {
	events := runContent(t, "1 0 0 RG 0 1 0 rg 10 10 20 20 re B", nil)

	if len(events) != 2 {
		t.Fatalf("expected 2 events for B, got %d", len(events))
	}
	if diff := cmp.Diff([]int{0, 255, 0}, events[0].Value); diff != "" {
		t.Errorf("fill event (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{255, 0, 0}, events[1].Value); diff != "" {
		t.Errorf("stroke event (-want +got):\n%s", diff)
	}
}

func TestTextEventCarriesString(t *testing.T) {
	stream := "BT /F1 12 Tf 1 0 0 1 20 30 Tm 0 0 0 1 k (Hello) Tj ET"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != report.KindText {
		t.Errorf("kind = %q", ev.Kind)
	}
	if ev.Text != "Hello" {
		t.Errorf("text = %q", ev.Text)
	}
	if ev.Bounds.Type != report.BoundsText {
		t.Errorf("bounds type = %q", ev.Bounds.Type)
	}
	// 20pt, 30pt origin in millimeters.
	if ev.Bounds.X != 7.1 || ev.Bounds.Y != 10.6 {
		t.Errorf("origin = (%v, %v)", ev.Bounds.X, ev.Bounds.Y)
	}
	if ev.OutOfBounds {
		t.Error("origin inside boundary must be in-bounds")
	}
}

func TestTJAssemblesParts(t *testing.T) {
	stream := "BT 0 0 0 1 k [(Hel) -20 (lo)] TJ ET"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Text != "Hello" {
		t.Errorf("text = %q", events[0].Text)
	}
}

func TestTextOutsideBoundary(t *testing.T) {
	stream := "BT 1 0 0 1 500 500 Tm 0 0 0 1 k (gone) Tj ET"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].OutOfBounds {
		t.Error("text origin beyond boundary must be out-of-bounds")
	}
}

func TestExtGStateAlpha(t *testing.T) {
	res := types.Dict{
		"ExtGState": types.Dict{
			"GS1": types.Dict{"ca": types.Float(0.5), "CA": types.Float(0.25)},
		},
	}
	events := runContent(t, "/GS1 gs 0 0 0 1 k 10 10 20 20 re f", res)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Opacity != 50 {
		t.Errorf("fill opacity = %d, want 50", events[0].Opacity)
	}
}

func TestNestedGroupOpacityMultiplies(t *testing.T) {
	// A form with a transparency group invoked at 70% fill alpha,
	// painting at 50% inside, lands at 35%.
	form := types.StreamDict{
		Dict: types.Dict{
			"Subtype": types.Name("Form"),
			"Group":   types.Dict{"S": types.Name("Transparency")},
			"Resources": types.Dict{
				"ExtGState": types.Dict{
					"GSin": types.Dict{"ca": types.Float(0.5)},
				},
			},
		},
		Content: []byte("/GSin gs 0 0 0 1 k 10 10 20 20 re f"),
	}
	res := types.Dict{
		"ExtGState": types.Dict{
			"GSout": types.Dict{"ca": types.Float(0.7)},
		},
		"XObject": types.Dict{"Fm1": form},
	}

	events := runContent(t, "/GSout gs /Fm1 Do", res)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Opacity != 35 {
		t.Errorf("nested opacity = %d, want 35", events[0].Opacity)
	}
}

func TestFormMatrixApplies(t *testing.T) {
	form := types.StreamDict{
		Dict: types.Dict{
			"Subtype": types.Name("Form"),
			"Matrix": types.Array{
				types.Integer(1), types.Integer(0), types.Integer(0),
				types.Integer(1), types.Integer(300), types.Integer(0),
			},
		},
		Content: []byte("0 0 0 1 k 0 0 10 10 re f"),
	}
	res := types.Dict{"XObject": types.Dict{"Fm1": form}}

	events := runContent(t, "/Fm1 Do", res)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].OutOfBounds {
		t.Error("form matrix must shift the fill outside the boundary")
	}
}

func TestFormRecursionLimit(t *testing.T) {
	// A form invoking itself trips the recursion cap and fails the
	// page, not the process.
	xobjs := types.Dict{}
	res := types.Dict{"XObject": xobjs}
	form := types.StreamDict{
		Dict: types.Dict{
			"Subtype":   types.Name("Form"),
			"Resources": res,
		},
		Content: []byte("/Fm1 Do"),
	}
	xobjs["Fm1"] = form

	interp := NewInterpreter(testPage("/Fm1 Do", res))
	_, err := interp.Run()
	if !errors.Is(err, ErrRecursionLimit) {
		t.Fatalf("expected ErrRecursionLimit, got %v", err)
	}
}

func TestIndexedColorThroughInterpreter(t *testing.T) {
	res := types.Dict{
		"ColorSpace": types.Dict{
			"CS0": types.Array{
				types.Name("Indexed"),
				types.Name("DeviceRGB"),
				types.Integer(1),
				types.StringLiteral("\x00\x00\x00\xff\xff\xff"),
			},
		},
	}
	events := runContent(t, "/CS0 cs 1 scn 10 10 20 20 re f", res)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Colorspace != "RGB" {
		t.Errorf("colorspace = %q, want RGB", events[0].Colorspace)
	}
	if diff := cmp.Diff([]int{255, 255, 255}, events[0].Value); diff != "" {
		t.Errorf("palette index 1 (-want +got):\n%s", diff)
	}
}

func TestUnknownOperatorsSkipped(t *testing.T) {
	// Marked-content and unknown operators do not derail analysis.
	stream := "/OC /MC0 BDC 0 0 0 1 k 10 10 20 20 re f EMC"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestInlineImageSkipped(t *testing.T) {
	stream := "BI /W 1 /H 1 ID \x00\x11\x22 EI 0 0 0 1 k 10 10 20 20 re f"
	events := runContent(t, stream, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event after inline image, got %d", len(events))
	}
}

func TestColorBeforeColorSpaceSkipped(t *testing.T) {
	interp := NewInterpreter(testPage("1 scn 10 10 20 20 re f", nil))
	events, err := interp.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if len(interp.Warnings()) == 0 {
		t.Error("scn before cs must record a warning")
	}
}

func TestPathWithoutPaintEmitsNothing(t *testing.T) {
	events := runContent(t, "0 0 0 1 k 10 10 20 20 re n", nil)
	if len(events) != 0 {
		t.Fatalf("n must discard the path, got %d events", len(events))
	}
}

func TestDuplicateFillsEmitTwoEvents(t *testing.T) {
	stream := "0 0 0 1 k 10 10 20 20 re f 10 10 20 20 re f"
	events := runContent(t, stream, nil)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if diff := cmp.Diff(events[0], events[1]); diff != "" {
		t.Errorf("identical fills must produce identical events:\n%s", diff)
	}
}
