package binder

import (
	"iter"

	"github.com/Lllllllleong/pdfbinder/internal/pdfengine"
)

// GeometryReader answers page count and page size queries.
type GeometryReader interface {
	PageCount(h pdfengine.Handle) (int, error)
	PageGeometry(h pdfengine.Handle, page int) (pdfengine.Box, error)
}

// Library is the PDF engine surface the orchestrator drives. Handles it returns
// are owned by the caller and must be released exactly once.
type Library interface {
	GeometryReader
	Load(path, password string) (pdfengine.Handle, error)
	PadAfter(h pdfengine.Handle, r pdfengine.PageRange) error
	ImposeStack(h pdfengine.Handle, imp pdfengine.Imposition) error
	MergeSequential(hs []pdfengine.Handle) (pdfengine.Handle, error)
	ScaleToFit(h pdfengine.Handle, r pdfengine.PageRange, paper pdfengine.Paper, scale float64) error
	WriteToFile(h pdfengine.Handle, path string, opts pdfengine.WriteOptions) error
	Release(h pdfengine.Handle) error
}

var _ Library = (*pdfengine.Engine)(nil)

// Notifier is told how a run ended, once, after cleanup.
type Notifier interface {
	NotifyCompletion(success bool)
}

type nopNotifier struct{}

func (nopNotifier) NotifyCompletion(bool) {}

// pageGeometries yields the media box of every page in order. A failed lookup is
// yielded once and ends the sequence.
func pageGeometries(lib GeometryReader, h pdfengine.Handle) iter.Seq2[pdfengine.Box, error] {
	return func(yield func(pdfengine.Box, error) bool) {
		n, err := lib.PageCount(h)
		if err != nil {
			yield(pdfengine.Box{}, err)
			return
		}
		for page := 1; page <= n; page++ {
			box, err := lib.PageGeometry(h, page)
			if !yield(box, err) || err != nil {
				return
			}
		}
	}
}

// IsPowerPoint reports whether every page of the document is strictly wider than
// it is tall. It stops at the first page that is not. A document without pages is
// not considered a slide deck.
func IsPowerPoint(lib GeometryReader, h pdfengine.Handle) (bool, error) {
	pages := 0
	for box, err := range pageGeometries(lib, h) {
		if err != nil {
			return false, err
		}
		if !box.Landscape() {
			return false, nil
		}
		pages++
	}
	return pages > 0, nil
}
