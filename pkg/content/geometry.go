package content

import (
	"math"

	"github.com/inkspect/inkspect/pkg/pdf"
	"github.com/inkspect/inkspect/pkg/report"
)

// 72 device units per inch, 25.4 mm per inch.
const mmPerPoint = 25.4 / 72

// PtToMM converts device units to millimeters, rounded to one decimal.
func PtToMM(pt float64) float64 {
	return math.Round(pt*mmPerPoint*10) / 10
}

// pathBounds accumulates the device-space bounding box of a path whose
// points have already been transformed through the CTM. The second
// return is the element type: "rectangle" when the path is a single
// axis-aligned re, "path" for anything else.
func pathBounds(path []PathElement) (pdf.Rect, string, bool) {
	var (
		rect    pdf.Rect
		started bool
		rectOps int
		drawOps int
	)

	for _, elem := range path {
		if elem.Type == "close" {
			continue
		}
		if elem.Type == "rect" {
			rectOps++
		}
		drawOps++
		for _, p := range elem.Points {
			if !started {
				rect = pdf.Rect{X0: p.X, Y0: p.Y, X1: p.X, Y1: p.Y}
				started = true
				continue
			}
			rect.X0 = math.Min(rect.X0, p.X)
			rect.Y0 = math.Min(rect.Y0, p.Y)
			rect.X1 = math.Max(rect.X1, p.X)
			rect.Y1 = math.Max(rect.Y1, p.Y)
		}
	}

	if !started {
		return pdf.Rect{}, "", false
	}

	kind := report.BoundsPath
	if rectOps == 1 && drawOps == 1 {
		kind = report.BoundsRectangle
	}
	return rect, kind, true
}

// boundsMM converts a device-space rectangle to the millimeter
// reporting shape.
func boundsMM(r pdf.Rect, kind string) report.Bounds {
	return report.Bounds{
		X:      PtToMM(r.X0),
		Y:      PtToMM(r.Y0),
		Width:  PtToMM(r.Width()),
		Height: PtToMM(r.Height()),
		Type:   kind,
	}
}

// textBoundsMM reports a text origin: position only, no extent.
func textBoundsMM(x, y float64) report.Bounds {
	return report.Bounds{
		X:    PtToMM(x),
		Y:    PtToMM(y),
		Type: report.BoundsText,
	}
}

// Containment slack for floating-point noise in transformed
// coordinates.
const boundsTolerance = 1e-6

// inBounds applies the strict containment rule: the whole element must
// lie within the page boundary, partial overlap is out-of-bounds.
func inBounds(box pdf.Rect, elem pdf.Rect) bool {
	return box.ContainsRect(elem, boundsTolerance)
}

// pointInBounds classifies a text origin against the page boundary.
func pointInBounds(box pdf.Rect, x, y float64) bool {
	return box.ContainsPoint(x, y, boundsTolerance)
}
