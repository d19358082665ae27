// Command pdf-binder merges every PDF in a directory into a single A4 document,
// stacking slide decks two to a page.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Lllllllleong/pdfbinder/internal/binder"
	"github.com/Lllllllleong/pdfbinder/internal/config"
	"github.com/Lllllllleong/pdfbinder/internal/console"
	"github.com/Lllllllleong/pdfbinder/internal/pdfengine"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	inputDir    string
	outputFile  string
	noNormalize bool
	padLast     bool
	wait        bool
	logFormat   string
}

// run executes the command and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, summary(err))
		return 1
	}
	return 0
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "pdf-binder",
		Short: "Merge a directory of PDFs into one print-ready A4 document",
		Long: `pdf-binder merges every .pdf file in the input directory, in name order.

Documents whose pages are all landscape are treated as slide decks and stacked
two slides to a page. Documents with an odd page count get a blank page so the
next one starts on a new sheet. The result is scaled to A4 portrait.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(stdout, opts.logFormat)

			cfg, err := resolveConfig(cmd, opts)
			var notifier binder.Notifier = console.Nop{}
			if cfg.PauseOnExit || (cmd.Flags().Changed("wait") && opts.wait) {
				notifier = console.PressEnterGate{In: stdin, Out: cmd.OutOrStdout()}
			}
			if err != nil {
				// The orchestrator never runs, so the gate is released here.
				notifier.NotifyCompletion(false)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := binder.New(pdfengine.New(), cfg, notifier).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d pages from %d documents.\n", res.OutputFile, res.Pages, res.Documents)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.StringVarP(&opts.inputDir, "input-dir", "i", config.DefaultInputDir, "directory holding the PDFs to merge")
	f.StringVarP(&opts.outputFile, "output", "o", config.DefaultOutputFile, "path of the merged PDF")
	f.BoolVar(&opts.noNormalize, "no-normalize", false, "keep the merged page sizes instead of scaling to A4")
	f.BoolVar(&opts.padLast, "pad-last", false, "also pad the last document to an even page count")
	f.BoolVar(&opts.wait, "wait", false, "wait for Enter before exiting")
	f.StringVar(&opts.logFormat, "log-format", "json", "log output format: json or text")
	return cmd
}

// resolveConfig layers defaults, the config file and the environment, then the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("input-dir") {
		cfg.InputDir = opts.inputDir
	}
	if f.Changed("output") {
		cfg.OutputFile = opts.outputFile
	}
	if f.Changed("no-normalize") {
		cfg.NormalizeToA4 = !opts.noNormalize
	}
	if f.Changed("pad-last") {
		cfg.PadLastDocument = opts.padLast
	}
	if f.Changed("wait") {
		cfg.PauseOnExit = opts.wait
	}
	return cfg, cfg.Validate()
}

func setupLogging(w io.Writer, format string) {
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, nil)
	} else {
		handler = slog.NewJSONHandler(w, nil)
	}
	slog.SetDefault(slog.New(handler))
}

// summary turns a run error into the line shown to the user.
func summary(err error) string {
	kind, ok := binder.KindOf(err)
	switch {
	case ok && kind == binder.KindConfiguration:
		return fmt.Sprintf("Nothing to merge: %v. Put your .pdf files in the input directory and run again.", err)
	case ok:
		return fmt.Sprintf("Merge failed: %v", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
