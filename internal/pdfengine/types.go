// Package pdfengine exposes the handful of pdfcpu operations the binder needs behind
// opaque document handles.
package pdfengine

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	// ErrUnknownHandle is returned for handles that were never issued or were already released.
	ErrUnknownHandle = errors.New("unknown document handle")
	// ErrPageRange is returned when a page index or range falls outside the document.
	ErrPageRange = errors.New("page out of range")
	// ErrUnsupported is returned for requests pdfcpu cannot express.
	ErrUnsupported = errors.New("operation not supported by pdf engine")
)

// Handle is an opaque reference to a loaded document. The zero value is never issued.
type Handle int

// Box holds the media box bounds of a single page.
type Box struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
}

func (b Box) Width() float64  { return b.Right - b.Left }
func (b Box) Height() float64 { return b.Top - b.Bottom }

// Landscape reports whether the page is strictly wider than it is tall.
func (b Box) Landscape() bool { return b.Width() > b.Height() }

// PageRange is an inclusive, 1-based page range.
type PageRange struct {
	From int
	To   int
}

// AllPages returns the range covering a document with n pages.
func AllPages(n int) PageRange { return PageRange{From: 1, To: n} }

// LastPage returns the range selecting only page n.
func LastPage(n int) PageRange { return PageRange{From: n, To: n} }

func (r PageRange) String() string {
	if r.From == r.To {
		return fmt.Sprintf("%d", r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

func (r PageRange) validate(pageCount int) error {
	if r.From < 1 || r.To < r.From || r.To > pageCount {
		return fmt.Errorf("range %s of %d pages: %w", r, pageCount, ErrPageRange)
	}
	return nil
}

// Paper names an ISO/ANSI form size from pdfcpu's paper table.
type Paper struct {
	Name      string
	Landscape bool
}

// A4Portrait is the default target paper for output normalization.
var A4Portrait = Paper{Name: "A4"}

// size returns the page width and height in points, in the paper's orientation.
func (p Paper) size() (float64, float64, error) {
	dim, ok := types.PaperSize[p.Name]
	if !ok {
		return 0, 0, fmt.Errorf("paper %q: %w", p.Name, ErrUnsupported)
	}
	w, h := min(dim.Width, dim.Height), max(dim.Width, dim.Height)
	if p.Landscape {
		return h, w, nil
	}
	return w, h, nil
}

// Imposition describes how consecutive pages are placed onto one composite page.
type Imposition struct {
	Columns     int
	Rows        int
	RightToLeft bool
	BottomToTop bool
	Margin      float64
	// Spacing is the gap between neighbouring cells. pdfcpu pads each cell by a
	// single margin, so the gap is max(2*Margin, Spacing) and with the default
	// 40/25 geometry Spacing has no visible effect.
	Spacing float64
	// LineWidth only switches the cell border on when positive; pdfcpu draws it
	// at its own fixed width.
	LineWidth float64
}

// WriteOptions controls serialization of a document.
type WriteOptions struct {
	Encrypt   bool
	Linearize bool
}
