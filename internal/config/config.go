// Package config loads and validates the pipeline's YAML configuration
// document, computing its config_hash via canon + the core's own SHA-256.
// Config loading happens before any FaultFlags-threaded call, so it is
// allowed to use ordinary Go error returns rather than sticky faults.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ctpipeline/internal/canon"
	"github.com/roach88/ctpipeline/internal/fixed"
	"github.com/roach88/ctpipeline/internal/tensor"
	"github.com/roach88/ctpipeline/internal/xsha256"
)

//go:embed schema.cue
var schemaSource string

// AugmentConfig is the YAML-facing augmentation configuration. Decimal
// quantities are stored as ASCII strings (matching the CSV field format of
// spec.md §6) and parsed into fixed.Q16 at load time; YAML has no
// fixed-point decimal type and the pipeline's own arithmetic must never
// pass through a Go float64.
type AugmentConfig struct {
	CropEnabled       bool   `yaml:"crop_enabled"`
	CropHeight        uint32 `yaml:"crop_height"`
	CropWidth         uint32 `yaml:"crop_width"`
	HFlipEnabled      bool   `yaml:"hflip_enabled"`
	VFlipEnabled      bool   `yaml:"vflip_enabled"`
	BrightnessEnabled bool   `yaml:"brightness_enabled"`
	BrightnessDelta   string `yaml:"brightness_delta"`
	NoiseEnabled      bool   `yaml:"noise_enabled"`
	NoiseAmplitude    string `yaml:"noise_amplitude"`
}

// PipelineConfig is the top-level YAML configuration document (SPEC_FULL.md
// §3).
type PipelineConfig struct {
	DatasetPath string        `yaml:"dataset_path"`
	StatsPath   string        `yaml:"stats_path"`
	Seed        uint64        `yaml:"seed"`
	BatchSize   uint32        `yaml:"batch_size"`
	NumEpochs   uint32        `yaml:"num_epochs"`
	Augment     AugmentConfig `yaml:"augment"`
	Name        string        `yaml:"name"`
	Notes       string        `yaml:"notes"`
}

// LoadPipelineConfig reads a YAML document from path, validates it against
// the embedded CUE schema, and returns the parsed PipelineConfig. Any YAML
// syntax error or CUE schema violation is returned as a plain error — no
// partial PipelineConfig is ever handed to a caller.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("config: parsing YAML: %w", err)
	}

	if err := validateAgainstSchema(cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("config: schema validation: %w", err)
	}

	return cfg, nil
}

func validateAgainstSchema(cfg PipelineConfig) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if schema.Err() != nil {
		return fmt.Errorf("compiling embedded schema: %w", schema.Err())
	}

	// Encode an explicit snake_case map so CUE sees the same field names
	// the YAML document uses.
	instance := ctx.Encode(cfg.toCUEMap())
	unified := schema.Unify(instance)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (c PipelineConfig) toCUEMap() map[string]any {
	return map[string]any{
		"dataset_path": c.DatasetPath,
		"stats_path":   c.StatsPath,
		"seed":         c.Seed,
		"batch_size":   int(c.BatchSize),
		"num_epochs":   int(c.NumEpochs),
		"name":         c.Name,
		"notes":        c.Notes,
		"augment": map[string]any{
			"crop_enabled":       c.Augment.CropEnabled,
			"crop_height":        c.Augment.CropHeight,
			"crop_width":         c.Augment.CropWidth,
			"hflip_enabled":      c.Augment.HFlipEnabled,
			"vflip_enabled":      c.Augment.VFlipEnabled,
			"brightness_enabled": c.Augment.BrightnessEnabled,
			"brightness_delta":   c.Augment.BrightnessDelta,
			"noise_enabled":      c.Augment.NoiseEnabled,
			"noise_amplitude":    c.Augment.NoiseAmplitude,
		},
	}
}

// BrightnessDeltaQ16 parses the configured brightness delta into Q16.16.
func (a AugmentConfig) BrightnessDeltaQ16(faults *fixed.FaultFlags) fixed.Q16 {
	return tensor.ParseDecimalField(a.BrightnessDelta, faults)
}

// NoiseAmplitudeQ16 parses the configured noise amplitude into Q16.16.
func (a AugmentConfig) NoiseAmplitudeQ16(faults *fixed.FaultFlags) fixed.Q16 {
	return tensor.ParseDecimalField(a.NoiseAmplitude, faults)
}

// ConfigHash computes the config's content-addressed commitment: the
// canonical JSON encoding of its human-authored metadata (name, notes, and
// the augment flag/knob set — never raw fixed values) hashed with the
// core's own SHA-256. seed, batch_size and num_epochs are excluded here:
// seed is bound into Provenance directly by merkle.InitProvenance, while
// batch_size and num_epochs are not hashed on their own (batch_size
// reaches the chain only through the batch and epoch hashes it shapes).
func (c PipelineConfig) ConfigHash() ([32]byte, error) {
	obj := canon.Object{
		"name":  c.Name,
		"notes": c.Notes,
		"augment": canon.Object{
			"crop_enabled":       c.Augment.CropEnabled,
			"crop_height":        int(c.Augment.CropHeight),
			"crop_width":         int(c.Augment.CropWidth),
			"hflip_enabled":      c.Augment.HFlipEnabled,
			"vflip_enabled":      c.Augment.VFlipEnabled,
			"brightness_enabled": c.Augment.BrightnessEnabled,
			"brightness_delta":   c.Augment.BrightnessDelta,
			"noise_enabled":      c.Augment.NoiseEnabled,
			"noise_amplitude":    c.Augment.NoiseAmplitude,
		},
	}
	encoded, err := canon.Marshal(obj)
	if err != nil {
		return [32]byte{}, fmt.Errorf("config: canonicalizing for hash: %w", err)
	}
	return xsha256.Sum256(encoded), nil
}
