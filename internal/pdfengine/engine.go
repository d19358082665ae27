package pdfengine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/google/renameio/v2/maybe"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// document is the engine-side state behind a Handle. data is always a complete,
// unencrypted PDF; ctx is parsed from it and only used for read-only queries.
type document struct {
	data   []byte
	ctx    *model.Context
	source string
}

// Engine owns every document it loads or creates until the caller releases it.
// It is not safe for concurrent use.
type Engine struct {
	docs map[Handle]*document
	next Handle
}

// New returns an engine with an empty handle table.
func New() *Engine {
	return &Engine{docs: make(map[Handle]*document)}
}

func newConfiguration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

func readContext(data []byte, conf *model.Configuration) (*model.Context, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func newDocument(data []byte, source string) (*document, error) {
	ctx, err := readContext(data, newConfiguration(""))
	if err != nil {
		return nil, err
	}
	return &document{data: data, ctx: ctx, source: source}, nil
}

func (e *Engine) register(d *document) Handle {
	e.next++
	e.docs[e.next] = d
	return e.next
}

func (e *Engine) lookup(h Handle) (*document, error) {
	d, ok := e.docs[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ErrUnknownHandle)
	}
	return d, nil
}

// Open reports how many handles are currently held.
func (e *Engine) Open() int { return len(e.docs) }

// Load reads and validates the PDF at path. A non-empty password decrypts the
// document once so later operations never need it again.
func (e *Engine) Load(path, password string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if password != "" {
		var out bytes.Buffer
		if err := api.Decrypt(bytes.NewReader(data), &out, newConfiguration(password)); err != nil {
			return 0, fmt.Errorf("failed to decrypt %s: %w", path, err)
		}
		data = out.Bytes()
	}
	d, err := newDocument(data, path)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	h := e.register(d)
	slog.Debug("Loaded document.", "path", path, "handle", int(h), "pageCount", d.ctx.PageCount)
	return h, nil
}

func (e *Engine) PageCount(h Handle) (int, error) {
	d, err := e.lookup(h)
	if err != nil {
		return 0, err
	}
	return d.ctx.PageCount, nil
}

// PageGeometry returns the effective media box of a 1-based page, following
// inheritance from the page tree.
func (e *Engine) PageGeometry(h Handle, page int) (Box, error) {
	d, err := e.lookup(h)
	if err != nil {
		return Box{}, err
	}
	if page < 1 || page > d.ctx.PageCount {
		return Box{}, fmt.Errorf("page %d of %d: %w", page, d.ctx.PageCount, ErrPageRange)
	}
	_, _, inh, err := d.ctx.PageDict(page, false)
	if err != nil {
		return Box{}, fmt.Errorf("failed to read page %d: %w", page, err)
	}
	if inh == nil || inh.MediaBox == nil {
		return Box{}, fmt.Errorf("page %d has no media box", page)
	}
	mb := inh.MediaBox
	return Box{Left: mb.LL.X, Right: mb.UR.X, Bottom: mb.LL.Y, Top: mb.UR.Y}, nil
}

// transform runs a pdfcpu stream operation over the document and replaces its
// contents with the result. The handle stays the same.
func (e *Engine) transform(h Handle, op string, fn func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error) error {
	d, err := e.lookup(h)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := fn(bytes.NewReader(d.data), &out, newConfiguration("")); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	next, err := newDocument(out.Bytes(), d.source)
	if err != nil {
		return fmt.Errorf("failed to reparse after %s: %w", op, err)
	}
	*d = *next
	return nil
}

// PadAfter inserts one blank page after every page in r.
func (e *Engine) PadAfter(h Handle, r PageRange) error {
	n, err := e.PageCount(h)
	if err != nil {
		return err
	}
	if err := r.validate(n); err != nil {
		return err
	}
	return e.transform(h, "insert blank pages", func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		return api.InsertPages(rs, w, []string{r.String()}, false, nil, conf)
	})
}

// ImposeStack lays consecutive pages onto a grid of imp.Columns by imp.Rows. The
// composite page is sized by the grid, so 1x2 yields double-height pages.
func (e *Engine) ImposeStack(h Handle, imp Imposition) error {
	if imp.Columns < 1 || imp.Rows < 1 {
		return fmt.Errorf("grid %dx%d: %w", imp.Columns, imp.Rows, ErrUnsupported)
	}
	if imp.BottomToTop {
		return fmt.Errorf("bottom-to-top imposition: %w", ErrUnsupported)
	}
	desc := nupDescription(imp)
	return e.transform(h, "impose pages", func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		nup, err := api.PDFGridConfig(imp.Rows, imp.Columns, desc, conf)
		if err != nil {
			return fmt.Errorf("invalid grid %q: %w", desc, err)
		}
		return api.NUp(rs, w, nil, nil, nup, conf)
	})
}

// nupDescription maps an Imposition onto pdfcpu's n-up parameters. pdfcpu pads every
// grid cell by one margin, so the gap between neighbours is twice that margin and the
// requested spacing only wins when it is wider.
func nupDescription(imp Imposition) string {
	orientation := "rd"
	if imp.RightToLeft {
		orientation = "ld"
	}
	margin := math.Max(imp.Margin, imp.Spacing/2)
	border := "off"
	if imp.LineWidth > 0 {
		border = "on"
	}
	return fmt.Sprintf("orientation:%s, margin:%.2f, border:%s", orientation, margin, border)
}

// MergeSequential concatenates the documents in order into a new document. The
// inputs remain valid and must still be released by the caller.
func (e *Engine) MergeSequential(hs []Handle) (Handle, error) {
	if len(hs) == 0 {
		return 0, fmt.Errorf("merge of zero documents: %w", ErrUnsupported)
	}
	readers := make([]io.ReadSeeker, 0, len(hs))
	for _, h := range hs {
		d, err := e.lookup(h)
		if err != nil {
			return 0, err
		}
		readers = append(readers, bytes.NewReader(d.data))
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, newConfiguration("")); err != nil {
		return 0, fmt.Errorf("failed to merge %d documents: %w", len(hs), err)
	}
	d, err := newDocument(out.Bytes(), "")
	if err != nil {
		return 0, fmt.Errorf("failed to parse merged document: %w", err)
	}
	return e.register(d), nil
}

// ScaleToFit fits every page in r onto paper, keeping its aspect ratio and
// centring it, then multiplies the fit by scale. The target orientation is kept
// as given: a landscape source lands on a portrait sheet, not a rotated one.
// Pages without content get the paper's media box as is.
func (e *Engine) ScaleToFit(h Handle, r PageRange, paper Paper, scale float64) error {
	n, err := e.PageCount(h)
	if err != nil {
		return err
	}
	if err := r.validate(n); err != nil {
		return err
	}
	if scale <= 0 {
		return fmt.Errorf("scale factor %g: %w", scale, ErrUnsupported)
	}
	w, ht, err := paper.size()
	if err != nil {
		return err
	}
	return e.edit(h, "scale pages", func(ctx *model.Context) error {
		for page := r.From; page <= r.To; page++ {
			if err := fitPage(ctx, page, w, ht, scale); err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
		}
		ctx.EnsureVersionForWriting()
		return nil
	})
}

// edit applies fn to a freshly parsed context of the document and replaces the
// document with the serialized result.
func (e *Engine) edit(h Handle, op string, fn func(ctx *model.Context) error) error {
	return e.transform(h, op, func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		ctx, err := api.ReadValidateAndOptimize(rs, conf)
		if err != nil {
			return err
		}
		if err := ctx.EnsurePageCount(); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
		return api.WriteContext(ctx, w)
	})
}

// fitPage wraps the page content in a scale-and-centre transform, clipped to the
// source box, and sets the media box to w x h.
func fitPage(ctx *model.Context, page int, w, h, scale float64) error {
	d, _, inh, err := ctx.PageDict(page, false)
	if err != nil {
		return err
	}
	if d == nil || inh == nil || inh.MediaBox == nil {
		return errors.New("page has no media box")
	}
	src := *inh.MediaBox
	if inh.CropBox != nil {
		src = *inh.CropBox
	}
	rot := ((inh.Rotate % 360) + 360) % 360

	content, err := ctx.PageContent(d, page)
	if err != nil && !errors.Is(err, model.ErrNoContent) {
		return err
	}

	// CropBox and Rotate may be inherited from the page tree, so they are
	// overridden on the page rather than deleted.
	d.Update("MediaBox", types.NewRectangle(0, 0, w, h).Array())
	d.Update("CropBox", types.NewRectangle(0, 0, w, h).Array())
	for _, key := range []string{"BleedBox", "TrimBox", "ArtBox"} {
		d.Delete(key)
	}
	if inh.Rotate != 0 {
		d.Update("Rotate", types.Integer(0))
	}
	if errors.Is(err, model.ErrNoContent) {
		return nil
	}

	sw, sh := src.Width(), src.Height()
	llx, lly := src.LL.X, src.LL.Y
	if rot != 0 {
		if rot == 90 || rot == 270 {
			sw, sh = sh, sw
		}
		// pdfcpu's rotation matrix maps the page onto [0,sw]x[0,sh].
		unrotate := append([]byte(" q "), model.ContentBytesForPageRotation(rot, sw, sh)...)
		content = append(append(unrotate, content...), []byte(" Q")...)
		llx, lly = 0, 0
	}
	if sw <= 0 || sh <= 0 {
		return fmt.Errorf("degenerate page box %.2fx%.2f", sw, sh)
	}

	s := math.Min(w/sw, h/sh) * scale
	tx := (w-sw*s)/2 - llx*s
	ty := (h-sh*s)/2 - lly*s

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "q %.5f 0 0 %.5f %.5f %.5f cm %.5f %.5f %.5f %.5f re W n\n", s, s, tx, ty, llx, lly, sw, sh)
	buf.Write(content)
	buf.WriteString("\nQ")

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	ir, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}
	d["Contents"] = *ir
	return nil
}

// WriteToFile serializes the document to path. The file is replaced atomically
// where the platform allows it, so a failed write never leaves a partial file.
func (e *Engine) WriteToFile(h Handle, path string, opts WriteOptions) error {
	if opts.Encrypt || opts.Linearize {
		return fmt.Errorf("write %s with %+v: %w", path, opts, ErrUnsupported)
	}
	d, err := e.lookup(h)
	if err != nil {
		return err
	}
	if err := maybe.WriteFile(path, d.data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Release drops the document behind h. Releasing twice is an error.
func (e *Engine) Release(h Handle) error {
	if _, err := e.lookup(h); err != nil {
		return err
	}
	delete(e.docs, h)
	return nil
}
