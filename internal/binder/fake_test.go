package binder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdfbinder/internal/pdfengine"
)

var (
	slide  = pdfengine.Box{Right: 842, Top: 595}
	letter = pdfengine.Box{Right: 612, Top: 792}
	square = pdfengine.Box{Right: 500, Top: 500}
	a4     = pdfengine.Box{Right: 595.28, Top: 841.89}
)

func pagesOf(box pdfengine.Box, n int) []pdfengine.Box {
	pages := make([]pdfengine.Box, n)
	for i := range pages {
		pages[i] = box
	}
	return pages
}

// fakeLibrary models documents as lists of page boxes. Files on disk only need to
// exist; their page layout comes from the files map, keyed by base name.
type fakeLibrary struct {
	files map[string][]pdfengine.Box

	docs map[pdfengine.Handle][]pdfengine.Box
	next pdfengine.Handle

	loaded        []string
	geometryCalls int
	imposed       []pdfengine.Imposition
	scaled        []pdfengine.Paper
	released      map[pdfengine.Handle]int
	badReleases   int
	written       map[string][]pdfengine.Box

	failLoad  string
	failMerge bool
	failWrite bool
}

func newFakeLibrary(files map[string][]pdfengine.Box) *fakeLibrary {
	return &fakeLibrary{
		files:    files,
		docs:     make(map[pdfengine.Handle][]pdfengine.Box),
		released: make(map[pdfengine.Handle]int),
		written:  make(map[string][]pdfengine.Box),
	}
}

func (f *fakeLibrary) add(pages []pdfengine.Box) pdfengine.Handle {
	f.next++
	f.docs[f.next] = append([]pdfengine.Box(nil), pages...)
	return f.next
}

func (f *fakeLibrary) doc(h pdfengine.Handle) ([]pdfengine.Box, error) {
	pages, ok := f.docs[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, pdfengine.ErrUnknownHandle)
	}
	return pages, nil
}

func (f *fakeLibrary) Load(path, password string) (pdfengine.Handle, error) {
	name := filepath.Base(path)
	f.loaded = append(f.loaded, name)
	if name == f.failLoad {
		return 0, errors.New("corrupt xref table")
	}
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	pages, ok := f.files[name]
	if !ok {
		return 0, fmt.Errorf("no layout for %s", name)
	}
	return f.add(pages), nil
}

func (f *fakeLibrary) PageCount(h pdfengine.Handle) (int, error) {
	pages, err := f.doc(h)
	return len(pages), err
}

func (f *fakeLibrary) PageGeometry(h pdfengine.Handle, page int) (pdfengine.Box, error) {
	f.geometryCalls++
	pages, err := f.doc(h)
	if err != nil {
		return pdfengine.Box{}, err
	}
	if page < 1 || page > len(pages) {
		return pdfengine.Box{}, pdfengine.ErrPageRange
	}
	return pages[page-1], nil
}

func (f *fakeLibrary) PadAfter(h pdfengine.Handle, r pdfengine.PageRange) error {
	pages, err := f.doc(h)
	if err != nil {
		return err
	}
	out := append([]pdfengine.Box(nil), pages[:r.To]...)
	out = append(out, pages[r.To-1])
	f.docs[h] = append(out, pages[r.To:]...)
	return nil
}

func (f *fakeLibrary) ImposeStack(h pdfengine.Handle, imp pdfengine.Imposition) error {
	pages, err := f.doc(h)
	if err != nil {
		return err
	}
	f.imposed = append(f.imposed, imp)
	var out []pdfengine.Box
	for i := 0; i < len(pages); i += imp.Rows {
		b := pages[i]
		out = append(out, pdfengine.Box{Right: b.Width(), Top: b.Height() * float64(imp.Rows)})
	}
	f.docs[h] = out
	return nil
}

func (f *fakeLibrary) MergeSequential(hs []pdfengine.Handle) (pdfengine.Handle, error) {
	if f.failMerge || len(hs) == 0 {
		return 0, errors.New("nothing to merge")
	}
	var merged []pdfengine.Box
	for _, h := range hs {
		pages, err := f.doc(h)
		if err != nil {
			return 0, err
		}
		merged = append(merged, pages...)
	}
	return f.add(merged), nil
}

func (f *fakeLibrary) ScaleToFit(h pdfengine.Handle, r pdfengine.PageRange, paper pdfengine.Paper, scale float64) error {
	pages, err := f.doc(h)
	if err != nil {
		return err
	}
	f.scaled = append(f.scaled, paper)
	for i := r.From - 1; i < r.To; i++ {
		pages[i] = a4
	}
	return nil
}

func (f *fakeLibrary) WriteToFile(h pdfengine.Handle, path string, opts pdfengine.WriteOptions) error {
	pages, err := f.doc(h)
	if err != nil {
		return err
	}
	if f.failWrite {
		return errors.New("disk full")
	}
	f.written[path] = append([]pdfengine.Box(nil), pages...)
	return os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644)
}

func (f *fakeLibrary) Release(h pdfengine.Handle) error {
	if _, ok := f.docs[h]; !ok {
		f.badReleases++
		return pdfengine.ErrUnknownHandle
	}
	delete(f.docs, h)
	f.released[h]++
	return nil
}

// issued is the number of handles ever handed out.
func (f *fakeLibrary) issued() int { return int(f.next) }

type recordingNotifier struct {
	calls []bool
}

func (n *recordingNotifier) NotifyCompletion(success bool) {
	n.calls = append(n.calls, success)
}
