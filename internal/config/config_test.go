package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagBinder(defaults Config, args ...string) (*fakeBinder, error) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &fakeBinder{fs: fs}, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Encoder.HiddenSize != cfg.Model.NumLayers*cfg.Model.HiddenSize {
		t.Errorf("encoder hidden size %d != %d layers x %d", cfg.Encoder.HiddenSize, cfg.Model.NumLayers, cfg.Model.HiddenSize)
	}

	if cfg.Model.TagVariant != TagVariantSentence {
		t.Errorf("Model.TagVariant = %q; want %q", cfg.Model.TagVariant, TagVariantSentence)
	}

	if cfg.Encoder.Kind != EncoderONNX {
		t.Errorf("Encoder.Kind = %q; want %q", cfg.Encoder.Kind, EncoderONNX)
	}

	if cfg.Train.TeacherForcingRatio != 1 {
		t.Errorf("Train.TeacherForcingRatio = %v; want 1", cfg.Train.TeacherForcingRatio)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-char-vocab", "models/char_vocab.json"},
		{"max-len", "32"},
		{"max-num-tags", "8"},
		{"teacher-forcing-ratio", "1"},
		{"freeze-encoder", "true"},
		{"encoder", "onnx"},
		{"model-seed", "0"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "")
	t.Setenv("MORPHTAG_ORT_LIB", "")

	defaults := DefaultConfig()

	binder, err := newFlagBinder(defaults)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_NilCmd(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Decode.MaxLen != defaults.Decode.MaxLen {
		t.Errorf("Decode.MaxLen = %d; want %d", cfg.Decode.MaxLen, defaults.Decode.MaxLen)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()

	binder, err := newFlagBinder(defaults,
		"--max-len=12",
		"--teacher-forcing-ratio=0.25",
		"--freeze-encoder=false",
		"--encoder=hash",
		"--model-seed=9",
		"--log-level=debug",
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Decode.MaxLen != 12 {
		t.Errorf("Decode.MaxLen = %d; want 12", cfg.Decode.MaxLen)
	}

	if cfg.Train.TeacherForcingRatio != 0.25 {
		t.Errorf("Train.TeacherForcingRatio = %v; want 0.25", cfg.Train.TeacherForcingRatio)
	}

	if cfg.Train.FreezeEncoder {
		t.Error("Train.FreezeEncoder = true; want false")
	}

	if cfg.Encoder.Kind != "hash" {
		t.Errorf("Encoder.Kind = %q; want hash", cfg.Encoder.Kind)
	}

	if cfg.Model.Seed != 9 {
		t.Errorf("Model.Seed = %d; want 9", cfg.Model.Seed)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", cfg.LogLevel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MORPHTAG_LOG_LEVEL", "warn")
	t.Setenv("MORPHTAG_TRAIN_WORKERS", "7")
	t.Setenv("ORT_LIBRARY_PATH", "/opt/ort/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}

	if cfg.Train.Workers != 7 {
		t.Errorf("Train.Workers = %d; want 7", cfg.Train.Workers)
	}

	if cfg.Encoder.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("Encoder.ORTLibraryPath = %q", cfg.Encoder.ORTLibraryPath)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "morphtag.yaml")

	content := `
log_level: error
decode:
  max_len: 20
model:
  tag_variant: token
encoder:
  kind: hash
  hidden_size: 12
`

	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	binder, err := newFlagBinder(defaults, "--max-num-tags=5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: binder, ConfigFile: cfgFile, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want error", cfg.LogLevel)
	}

	if cfg.Decode.MaxLen != 20 {
		t.Errorf("Decode.MaxLen = %d; want 20", cfg.Decode.MaxLen)
	}

	if cfg.Decode.MaxNumTags != 5 {
		t.Errorf("Decode.MaxNumTags = %d; want 5 from flag", cfg.Decode.MaxNumTags)
	}

	if cfg.Model.TagVariant != "token" {
		t.Errorf("Model.TagVariant = %q; want token", cfg.Model.TagVariant)
	}

	if cfg.Encoder.HiddenSize != 12 {
		t.Errorf("Encoder.HiddenSize = %d; want 12", cfg.Encoder.HiddenSize)
	}

	if cfg.Paths.TagVocab != defaults.Paths.TagVocab {
		t.Errorf("Paths.TagVocab = %q; want default", cfg.Paths.TagVocab)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "bad.yaml")

	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(LoadOptions{ConfigFile: cfgFile, Defaults: DefaultConfig()}); err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/morphtag.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestNormalizeEnums(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) (string, error)
		input   string
		want    string
		wantErr bool
	}{
		{"encoder default", NormalizeEncoderKind, "", EncoderONNX, false},
		{"encoder ort alias", NormalizeEncoderKind, " ORT ", EncoderONNX, false},
		{"encoder hash", NormalizeEncoderKind, "Hash", EncoderHash, false},
		{"encoder invalid", NormalizeEncoderKind, "bert", "", true},
		{"variant default", NormalizeTagVariant, "  ", TagVariantSentence, false},
		{"variant bilstm alias", NormalizeTagVariant, "BiLSTM", TagVariantSentence, false},
		{"variant token", NormalizeTagVariant, "token", TagVariantToken, false},
		{"variant invalid", NormalizeTagVariant, "crf", "", true},
		{"tokenizer default", NormalizeTokenizerKind, "", TokenizerWordPiece, false},
		{"tokenizer spm alias", NormalizeTokenizerKind, "SPM", TokenizerSentencePiece, false},
		{"tokenizer hash", NormalizeTokenizerKind, "hash", TokenizerHash, false},
		{"tokenizer invalid", NormalizeTokenizerKind, "bpe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v; wantErr %v", tt.input, err, tt.wantErr)
		}

		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v; want %v", tt.input, got, tt.want)
		}
	}
}
