// Package binder merges a directory of PDFs into one print-ready document.
//
// Every document is loaded in listing order, wide slide decks are stacked two to a
// page, odd page counts are padded so the next document starts on a fresh leaf,
// and the result is merged, scaled to A4 and written out. All PDF work goes
// through a Library.
package binder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdfbinder/internal/config"
	"github.com/Lllllllleong/pdfbinder/internal/pdfengine"
)

// PDFExtension is matched exactly; "c.PDF" is skipped.
const PDFExtension = ".pdf"

// Result summarizes a run. Run returns it on failure too, with State set to
// StateFailed and the counters reflecting the work done before the failure.
type Result struct {
	OutputFile string
	Documents  int
	Stacked    int
	Padded     int
	Pages      int
	Skipped    []string
	State      State
}

// Orchestrator runs one merge at a time. It is not safe for concurrent use.
type Orchestrator struct {
	lib      Library
	cfg      config.Config
	notifier Notifier
	state    State
}

// New returns an orchestrator. A nil notifier is replaced by one that does nothing.
func New(lib Library, cfg config.Config, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Orchestrator{lib: lib, cfg: cfg, notifier: notifier}
}

// State returns the state the latest run ended in.
func (o *Orchestrator) State() State { return o.state }

// Run performs one complete merge. Every handle obtained from the library is
// released before Run returns, whatever the outcome, and the notifier is called
// exactly once.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	logCtx := slog.With("inputDir", o.cfg.InputDir, "outputFile", o.cfg.OutputFile)
	logCtx.Info("Starting merge run.")
	o.state = StateIdle

	res := &Result{OutputFile: o.cfg.OutputFile}
	owned := newHandleSet(o.lib)
	err := o.run(ctx, logCtx, owned, res)

	o.setState(logCtx, StateCleanup)
	if relErr := owned.releaseAll(); relErr != nil {
		logCtx.Error("Failed to release document handles.", "error", relErr)
		if err == nil {
			err = o.fail(KindLibraryOperation, "release documents", relErr)
		}
	}

	if err != nil {
		o.state = StateFailed
		res.State = StateFailed
		logCtx.Error("Merge run failed.", "error", err)
	} else {
		o.setState(logCtx, StateDone)
		res.State = StateDone
		logCtx.Info("Merge run complete.",
			"documents", res.Documents,
			"stacked", res.Stacked,
			"padded", res.Padded,
			"pageCount", res.Pages,
		)
	}
	o.notifier.NotifyCompletion(err == nil)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, logCtx *slog.Logger, owned *handleSet, res *Result) error {
	o.setState(logCtx, StateValidating)
	files, skipped, err := o.collectInputs(logCtx)
	res.Skipped = skipped
	if err != nil {
		return err
	}

	o.setState(logCtx, StateNormalizing)
	handles := make([]pdfengine.Handle, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return o.fail(KindLibraryOperation, "load "+path, err)
		}
		fileLog := logCtx.With("file", filepath.Base(path))
		fileLog.Info("Processing file.")

		h, err := o.lib.Load(path, "")
		if err != nil {
			return o.fail(KindLibraryOperation, "load "+path, err)
		}
		owned.add(h)
		handles = append(handles, h)

		if err := o.normalize(fileLog, h, i == len(files)-1, res); err != nil {
			return err
		}
		res.Documents++
	}

	o.setState(logCtx, StateMerging)
	logCtx.Info("Creating output document.", "documents", len(handles))
	out, err := o.lib.MergeSequential(handles)
	if err != nil {
		return o.fail(KindLibraryOperation, "merge documents", err)
	}
	owned.add(out)
	pages, err := o.lib.PageCount(out)
	if err != nil {
		return o.fail(KindLibraryOperation, "count output pages", err)
	}

	if o.cfg.NormalizeToA4 && pages > 0 {
		o.setState(logCtx, StateScaling)
		if err := o.lib.ScaleToFit(out, pdfengine.AllPages(pages), pdfengine.A4Portrait, 1.0); err != nil {
			return o.fail(KindLibraryOperation, "scale output to A4", err)
		}
	}

	o.setState(logCtx, StateWriting)
	if err := o.lib.WriteToFile(out, o.cfg.OutputFile, pdfengine.WriteOptions{}); err != nil {
		return o.fail(KindLibraryOperation, "write "+o.cfg.OutputFile, err)
	}
	res.Pages = pages
	return nil
}

// normalize stacks slide decks and pads odd page counts. The last document is
// only padded when PadLastDocument is set.
func (o *Orchestrator) normalize(logCtx *slog.Logger, h pdfengine.Handle, last bool, res *Result) error {
	wide, err := IsPowerPoint(o.lib, h)
	if err != nil {
		return o.fail(KindLibraryOperation, "classify pages", err)
	}
	if wide {
		logCtx.Info("File is likely a PowerPoint, its pages will be stacked.")
		if err := o.lib.ImposeStack(h, o.stacking()); err != nil {
			return o.fail(KindLibraryOperation, "stack pages", err)
		}
		res.Stacked++
	}

	n, err := o.lib.PageCount(h)
	if err != nil {
		return o.fail(KindLibraryOperation, "count pages", err)
	}
	if n%2 == 0 {
		return nil
	}
	if last && !o.cfg.PadLastDocument {
		logCtx.Info("Last file has an odd page count, leaving it unpadded.", "pageCount", n)
		return nil
	}
	if err := o.lib.PadAfter(h, pdfengine.LastPage(n)); err != nil {
		return o.fail(KindLibraryOperation, "pad odd page count", err)
	}
	logCtx.Info("Padded odd page count with a blank page.", "pageCount", n+1)
	res.Padded++
	return nil
}

func (o *Orchestrator) stacking() pdfengine.Imposition {
	return pdfengine.Imposition{
		Columns:   1,
		Rows:      2,
		Margin:    o.cfg.StackingMargin,
		Spacing:   o.cfg.StackingSpacing,
		LineWidth: o.cfg.StackingLineHeight,
	}
}

// collectInputs lists the input directory and keeps regular entries ending in
// exactly ".pdf", in listing order. Everything else is skipped with a warning.
func (o *Orchestrator) collectInputs(logCtx *slog.Logger) ([]string, []string, error) {
	dir := o.cfg.InputDir
	if o.cfg.ValidateInput {
		info, err := os.Stat(dir)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			return nil, nil, o.fail(KindConfiguration, "check input directory", fmt.Errorf("%s: %w", dir, ErrMissingInputDirectory))
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, o.fail(KindLibraryOperation, "list input directory", err)
	}

	var files, skipped []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			logCtx.Warn("Skipping directory.", "file", name)
			skipped = append(skipped, name)
			continue
		}
		if filepath.Ext(name) != PDFExtension {
			logCtx.Warn("Skipping file without .pdf extension.", "file", name)
			skipped = append(skipped, name)
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 && o.cfg.ValidateInput {
		return nil, skipped, o.fail(KindConfiguration, "collect input files", fmt.Errorf("%s: %w", dir, ErrNoInputFiles))
	}
	return files, skipped, nil
}

func (o *Orchestrator) setState(logCtx *slog.Logger, s State) {
	o.state = s
	logCtx.Debug("Entering state.", "state", s.String())
}

func (o *Orchestrator) fail(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, State: o.state, Err: err}
}

// handleSet tracks ownership so each handle is released exactly once.
type handleSet struct {
	lib   Library
	order []pdfengine.Handle
	live  map[pdfengine.Handle]bool
}

func newHandleSet(lib Library) *handleSet {
	return &handleSet{lib: lib, live: make(map[pdfengine.Handle]bool)}
}

func (s *handleSet) add(h pdfengine.Handle) {
	if s.live[h] {
		return
	}
	s.live[h] = true
	s.order = append(s.order, h)
}

// releaseAll releases newest first, so the merged output goes before its inputs.
// A failed release is not retried.
func (s *handleSet) releaseAll() error {
	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		h := s.order[i]
		if !s.live[h] {
			continue
		}
		delete(s.live, h)
		if err := s.lib.Release(h); err != nil {
			errs = append(errs, fmt.Errorf("release handle %d: %w", h, err))
		}
	}
	s.order = nil
	return errors.Join(errs...)
}
