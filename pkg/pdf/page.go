package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Page is a single page prepared for content analysis: its visible
// boundary, the decoded content stream and the resource dictionary.
// The page keeps a handle on the pdfcpu context so the interpreter
// can resolve indirect resource entries (colorspaces, ExtGState,
// form XObjects) on demand.
type Page struct {
	ctx       *model.Context
	Number    int // 1-based
	MediaBox  Rect
	Content   []byte
	Resources types.Dict
}

// newPage builds a page from the pdfcpu context.
func newPage(ctx *model.Context, pageNumber int) (*Page, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}
	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", pageNumber, ctx.PageCount)
	}

	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}

	p := &Page{
		ctx:    ctx,
		Number: pageNumber,
		// Default US Letter size
		MediaBox: Rect{X0: 0, Y0: 0, X1: 612, Y1: 792},
	}

	if attrs != nil && attrs.MediaBox != nil {
		p.MediaBox = Rect{
			X0: attrs.MediaBox.LL.X,
			Y0: attrs.MediaBox.LL.Y,
			X1: attrs.MediaBox.UR.X,
			Y1: attrs.MediaBox.UR.Y,
		}
	}

	if attrs != nil && attrs.Resources != nil {
		p.Resources = attrs.Resources
	} else if res, found := pageDict.Find("Resources"); found {
		if dict, err := p.ResolveDict(res); err == nil {
			p.Resources = dict
		}
	}

	content, err := p.extractContent(pageDict["Contents"])
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}
	p.Content = content

	return p, nil
}

// extractContent collects and decodes the page's content stream(s).
// Multiple streams are combined with a separating newline.
func (p *Page) extractContent(contents types.Object) ([]byte, error) {
	if contents == nil {
		return nil, nil // No content
	}

	var streams [][]byte

	switch v := contents.(type) {
	case types.IndirectRef:
		data, err := p.DecodeStream(v)
		if err != nil {
			return nil, err
		}
		if data != nil {
			streams = append(streams, data)
		}

	case *types.IndirectRef:
		data, err := p.DecodeStream(*v)
		if err != nil {
			return nil, err
		}
		if data != nil {
			streams = append(streams, data)
		}

	case types.Array:
		for _, item := range v {
			data, err := p.DecodeStream(item)
			if err != nil {
				// A single undecodable stream should not lose the page.
				continue
			}
			if data != nil {
				streams = append(streams, data)
			}
		}
	}

	return combineStreams(streams), nil
}

// combineStreams joins multiple content streams. A newline between
// streams keeps operators from adjacent streams from merging.
func combineStreams(streams [][]byte) []byte {
	var combined []byte
	for _, s := range streams {
		combined = append(combined, s...)
		combined = append(combined, '\n')
	}
	return combined
}

// Resolve dereferences an object through the document's xref table.
// Non-reference objects are returned unchanged.
func (p *Page) Resolve(obj types.Object) (types.Object, error) {
	if p.ctx == nil {
		return obj, nil
	}
	return p.ctx.Dereference(obj)
}

// ResolveDict dereferences obj and asserts a dictionary.
func (p *Page) ResolveDict(obj types.Object) (types.Dict, error) {
	resolved, err := p.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch d := resolved.(type) {
	case types.Dict:
		return d, nil
	case types.StreamDict:
		return d.Dict, nil
	case *types.StreamDict:
		return d.Dict, nil
	}
	return nil, fmt.Errorf("expected dict, got %T", resolved)
}

// DecodeStream dereferences obj to a stream dictionary and returns its
// decoded content.
func (p *Page) DecodeStream(obj types.Object) ([]byte, error) {
	switch v := obj.(type) {
	case types.IndirectRef:
		sd, _, err := p.ctx.DereferenceStreamDict(v)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference stream: %w", err)
		}
		if sd == nil {
			return nil, nil
		}
		return decodedContent(sd)
	case *types.IndirectRef:
		return p.DecodeStream(*v)
	case types.StreamDict:
		return decodedContent(&v)
	case *types.StreamDict:
		return decodedContent(v)
	}
	return nil, fmt.Errorf("expected stream, got %T", obj)
}

// ResolveStreamDict dereferences obj to a stream dictionary without
// decoding it. Used for form XObjects where the dictionary entries
// (Subtype, Matrix, Resources, Group) matter as much as the content.
func (p *Page) ResolveStreamDict(obj types.Object) (*types.StreamDict, error) {
	switch v := obj.(type) {
	case types.IndirectRef:
		sd, _, err := p.ctx.DereferenceStreamDict(v)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference stream: %w", err)
		}
		return sd, nil
	case *types.IndirectRef:
		return p.ResolveStreamDict(*v)
	case types.StreamDict:
		return &v, nil
	case *types.StreamDict:
		return v, nil
	}
	return nil, fmt.Errorf("expected stream, got %T", obj)
}

func decodedContent(sd *types.StreamDict) ([]byte, error) {
	if len(sd.Content) > 0 {
		return sd.Content, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("failed to decode stream: %w", err)
	}
	return sd.Content, nil
}
