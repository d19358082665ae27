// Package config holds the settings that drive a merge run. Values are layered:
// built-in defaults, then an optional YAML file, then PDFBINDER_* environment
// variables. The CLI applies its flags on top and calls Validate last.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInputDir   = "pdfs"
	DefaultOutputFile = "out.pdf"
)

// Environment variable names.
const (
	EnvInputDir           = "PDFBINDER_INPUT_DIR"
	EnvOutputFile         = "PDFBINDER_OUTPUT_FILE"
	EnvStackingMargin     = "PDFBINDER_STACKING_MARGIN"
	EnvStackingSpacing    = "PDFBINDER_STACKING_SPACING"
	EnvStackingLineHeight = "PDFBINDER_STACKING_LINE_HEIGHT"
	EnvNormalizeToA4      = "PDFBINDER_NORMALIZE_TO_A4"
	EnvPadLastDocument    = "PDFBINDER_PAD_LAST_DOCUMENT"
	EnvValidateInput      = "PDFBINDER_VALIDATE_INPUT"
	EnvPauseOnExit        = "PDFBINDER_PAUSE_ON_EXIT"
)

// Config is everything the orchestrator needs to know about a run.
type Config struct {
	// Stacking geometry for wide documents, in points.
	StackingMargin     float64 `yaml:"stacking_margin"`
	StackingSpacing    float64 `yaml:"stacking_spacing"`
	StackingLineHeight float64 `yaml:"stacking_line_height"`

	// NormalizeToA4 scales every page of the merged output onto A4 portrait.
	NormalizeToA4 bool `yaml:"normalize_to_a4"`

	InputDir   string `yaml:"input_dir"`
	OutputFile string `yaml:"output_file"`

	// PadLastDocument also pads the final document to an even page count.
	// Off by default: nothing follows it that would need a fresh leaf.
	PadLastDocument bool `yaml:"pad_last_document"`

	// ValidateInput fails early on a missing input directory or an empty file set.
	ValidateInput bool `yaml:"validate_input"`

	// PauseOnExit waits for Enter before the CLI exits.
	PauseOnExit bool `yaml:"pause_on_exit"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		StackingMargin:     40.0,
		StackingSpacing:    25.0,
		StackingLineHeight: 2.0,
		NormalizeToA4:      true,
		InputDir:           DefaultInputDir,
		OutputFile:         DefaultOutputFile,
		ValidateInput:      true,
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped when
// path is empty) and the environment. The result is not validated.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = LoadFile(path, c); err != nil {
			return c, err
		}
	}
	return ApplyEnv(c)
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the file keep
// their value from base; unknown keys are rejected.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ApplyEnv overlays any PDFBINDER_* variables that are set onto c.
func ApplyEnv(c Config) (Config, error) {
	c.InputDir = GetEnv(EnvInputDir, c.InputDir)
	c.OutputFile = GetEnv(EnvOutputFile, c.OutputFile)

	floats := []struct {
		key string
		dst *float64
	}{
		{EnvStackingMargin, &c.StackingMargin},
		{EnvStackingSpacing, &c.StackingSpacing},
		{EnvStackingLineHeight, &c.StackingLineHeight},
	}
	for _, f := range floats {
		raw := GetEnv(f.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, fmt.Errorf("config: %s: %w", f.key, err)
		}
		*f.dst = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvNormalizeToA4, &c.NormalizeToA4},
		{EnvPadLastDocument, &c.PadLastDocument},
		{EnvValidateInput, &c.ValidateInput},
		{EnvPauseOnExit, &c.PauseOnExit},
	}
	for _, b := range bools {
		raw := GetEnv(b.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c, fmt.Errorf("config: %s: %w", b.key, err)
		}
		*b.dst = v
	}
	return c, nil
}

// Validate reports the first setting that cannot drive a run.
func (c Config) Validate() error {
	switch {
	case c.InputDir == "":
		return errors.New("config: input directory must be set")
	case c.OutputFile == "":
		return errors.New("config: output file must be set")
	case c.StackingMargin < 0:
		return fmt.Errorf("config: stacking margin %g must not be negative", c.StackingMargin)
	case c.StackingSpacing < 0:
		return fmt.Errorf("config: stacking spacing %g must not be negative", c.StackingSpacing)
	case c.StackingLineHeight < 0:
		return fmt.Errorf("config: stacking line height %g must not be negative", c.StackingLineHeight)
	}
	return nil
}
