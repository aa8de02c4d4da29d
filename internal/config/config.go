package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Model    ModelConfig   `mapstructure:"model"`
	Decode   DecodeConfig  `mapstructure:"decode"`
	Train    TrainConfig   `mapstructure:"train"`
	Encoder  EncoderConfig `mapstructure:"encoder"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	CharVocab  string `mapstructure:"char_vocab"`
	TagVocab   string `mapstructure:"tag_vocab"`
	Checkpoint string `mapstructure:"checkpoint"`
	Data       string `mapstructure:"data"`
	LatticeOut string `mapstructure:"lattice_out"`
}

type ModelConfig struct {
	CharEmbeddingDim int     `mapstructure:"char_embedding_dim"`
	HiddenSize       int     `mapstructure:"hidden_size"`
	NumLayers        int     `mapstructure:"num_layers"`
	EncDropout       float64 `mapstructure:"enc_dropout"`
	DecDropout       float64 `mapstructure:"dec_dropout"`
	OutDropout       float64 `mapstructure:"out_dropout"`
	TagVariant       string  `mapstructure:"tag_variant"`
	TagHiddenSize    int     `mapstructure:"tag_hidden_size"`
	TagNumLayers     int     `mapstructure:"tag_num_layers"`
	TagDropout       float64 `mapstructure:"tag_dropout"`
	TagOutDropout    float64 `mapstructure:"tag_out_dropout"`
	// Seed drives random initialisation of parameters absent from the
	// checkpoint. Zero requires every parameter to be present.
	Seed uint64 `mapstructure:"seed"`
}

type DecodeConfig struct {
	MaxLen     int `mapstructure:"max_len"`
	MaxNumTags int `mapstructure:"max_num_tags"`
}

type TrainConfig struct {
	TeacherForcingRatio float64 `mapstructure:"teacher_forcing_ratio"`
	Epochs              int     `mapstructure:"epochs"`
	BatchSize           int     `mapstructure:"batch_size"`
	PrintEvery          int     `mapstructure:"print_every"`
	Workers             int     `mapstructure:"workers"`
	FreezeEncoder       bool    `mapstructure:"freeze_encoder"`
	Seed                uint64  `mapstructure:"seed"`
}

type EncoderConfig struct {
	Kind           string `mapstructure:"kind"`
	ModelPath      string `mapstructure:"model_path"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
	HiddenSize     int    `mapstructure:"hidden_size"`
	OutputName     string `mapstructure:"output_name"`
	MaxPositions   int    `mapstructure:"max_positions"`
	Tokenizer      string `mapstructure:"tokenizer"`
	TokenizerPath  string `mapstructure:"tokenizer_path"`
	Lowercase      bool   `mapstructure:"lowercase"`
	CLSID          int    `mapstructure:"cls_id"`
	SEPID          int    `mapstructure:"sep_id"`
}

type RuntimeConfig struct {
	Threads int `mapstructure:"threads"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			CharVocab:  "models/char_vocab.json",
			TagVocab:   "models/tag_vocab.json",
			Checkpoint: "models/morphtag.safetensors",
			Data:       "",
			LatticeOut: "",
		},
		Model: ModelConfig{
			CharEmbeddingDim: 100,
			HiddenSize:       384,
			NumLayers:        2,
			EncDropout:       0.1,
			DecDropout:       0.1,
			OutDropout:       0.5,
			TagVariant:       TagVariantSentence,
			TagHiddenSize:    384,
			TagNumLayers:     2,
			TagDropout:       0.1,
			TagOutDropout:    0.5,
			Seed:             0,
		},
		Decode: DecodeConfig{
			MaxLen:     32,
			MaxNumTags: 8,
		},
		Train: TrainConfig{
			TeacherForcingRatio: 1.0,
			Epochs:              3,
			BatchSize:           100,
			PrintEvery:          100,
			Workers:             4,
			FreezeEncoder:       true,
			Seed:                1,
		},
		Encoder: EncoderConfig{
			Kind:           EncoderONNX,
			ModelPath:      "models/encoder.onnx",
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
			HiddenSize:     768,
			OutputName:     "last_hidden_state",
			MaxPositions:   512,
			Tokenizer:      TokenizerWordPiece,
			TokenizerPath:  "models/vocab.txt",
			Lowercase:      false,
			CLSID:          2,
			SEPID:          3,
		},
		Runtime: RuntimeConfig{
			Threads: 4,
		},
		LogLevel: "info",
	}
}

// field ties a config key to its flag and default.
type field struct {
	key   string
	flag  string
	usage string
	value any
}

func fields(c Config) []field {
	return []field{
		{"paths.char_vocab", "paths-char-vocab", "Path to the character vocabulary JSON", c.Paths.CharVocab},
		{"paths.tag_vocab", "paths-tag-vocab", "Path to the tag vocabulary JSON", c.Paths.TagVocab},
		{"paths.checkpoint", "paths-checkpoint", "Path to the model safetensors checkpoint", c.Paths.Checkpoint},
		{"paths.data", "data", "Path to a JSON-lines dataset", c.Paths.Data},
		{"paths.lattice_out", "lattice-out", "Write decoded lattice rows to this TSV file", c.Paths.LatticeOut},

		{"model.char_embedding_dim", "model-char-embedding-dim", "Character embedding width", c.Model.CharEmbeddingDim},
		{"model.hidden_size", "model-hidden-size", "Character encoder/decoder hidden size per layer", c.Model.HiddenSize},
		{"model.num_layers", "model-num-layers", "Character encoder/decoder layer count", c.Model.NumLayers},
		{"model.enc_dropout", "model-enc-dropout", "Dropout between character encoder layers", c.Model.EncDropout},
		{"model.dec_dropout", "model-dec-dropout", "Dropout between character decoder layers", c.Model.DecDropout},
		{"model.out_dropout", "model-out-dropout", "Dropout before the character projection", c.Model.OutDropout},
		{"model.tag_variant", "tag-variant", "Tag encoder variant (sentence|token)", c.Model.TagVariant},
		{"model.tag_hidden_size", "model-tag-hidden-size", "Tag LSTM hidden size per direction", c.Model.TagHiddenSize},
		{"model.tag_num_layers", "model-tag-num-layers", "Tag LSTM layer count", c.Model.TagNumLayers},
		{"model.tag_dropout", "model-tag-dropout", "Dropout between tag LSTM layers", c.Model.TagDropout},
		{"model.tag_out_dropout", "model-tag-out-dropout", "Dropout before the tag projection", c.Model.TagOutDropout},
		{"model.seed", "model-seed", "Seed for initialising parameters missing from the checkpoint (0 disables)", c.Model.Seed},

		{"decode.max_len", "max-len", "Maximum decoded characters per token", c.Decode.MaxLen},
		{"decode.max_num_tags", "max-num-tags", "Maximum segments per token", c.Decode.MaxNumTags},

		{"train.teacher_forcing_ratio", "teacher-forcing-ratio", "Probability of decoding a training sentence from gold", c.Train.TeacherForcingRatio},
		{"train.epochs", "epochs", "Number of epochs", c.Train.Epochs},
		{"train.batch_size", "batch-size", "Sentences per batch", c.Train.BatchSize},
		{"train.print_every", "print-every", "Batches between progress logs", c.Train.PrintEvery},
		{"train.workers", "workers", "Concurrent sentence decoders during evaluation", c.Train.Workers},
		{"train.freeze_encoder", "freeze-encoder", "Encode each sentence once per session", c.Train.FreezeEncoder},
		{"train.seed", "train-seed", "Seed for teacher forcing and dropout draws", c.Train.Seed},

		{"encoder.kind", "encoder", "Contextual encoder (onnx|hash)", c.Encoder.Kind},
		{"encoder.model_path", "encoder-model-path", "Path to the ONNX encoder graph", c.Encoder.ModelPath},
		{"encoder.ort_library_path", "ort-lib", "Path to ONNX Runtime shared library", c.Encoder.ORTLibraryPath},
		{"encoder.ort_api_version", "ort-api-version", "ONNX Runtime C API version", c.Encoder.ORTAPIVersion},
		{"encoder.hidden_size", "encoder-hidden-size", "Encoder per-position vector width", c.Encoder.HiddenSize},
		{"encoder.output_name", "encoder-output-name", "Encoder graph output holding per-position vectors", c.Encoder.OutputName},
		{"encoder.max_positions", "encoder-max-positions", "Maximum sub-word positions per sentence", c.Encoder.MaxPositions},
		{"encoder.tokenizer", "tokenizer", "Sub-word tokenizer (wordpiece|sentencepiece|hash)", c.Encoder.Tokenizer},
		{"encoder.tokenizer_path", "tokenizer-path", "Path to vocab.txt or a SentencePiece model", c.Encoder.TokenizerPath},
		{"encoder.lowercase", "tokenizer-lowercase", "Lowercase and strip accents before WordPiece", c.Encoder.Lowercase},
		{"encoder.cls_id", "tokenizer-cls-id", "Sentence start id for SentencePiece", c.Encoder.CLSID},
		{"encoder.sep_id", "tokenizer-sep-id", "Sentence end id for SentencePiece", c.Encoder.SEPID},

		{"runtime.threads", "runtime-threads", "Worker goroutines for tensor kernels", c.Runtime.Threads},
		{"log_level", "log-level", "Log level (debug|info|warn|error)", c.LogLevel},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	for _, f := range fields(defaults) {
		switch v := f.value.(type) {
		case string:
			fs.String(f.flag, v, f.usage)
		case int:
			fs.Int(f.flag, v, f.usage)
		case uint64:
			fs.Uint64(f.flag, v, f.usage)
		case float64:
			fs.Float64(f.flag, v, f.usage)
		case bool:
			fs.Bool(f.flag, v, f.usage)
		default:
			panic(fmt.Sprintf("config: unsupported flag type %T for %s", v, f.key))
		}
	}
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	for _, f := range fields(opts.Defaults) {
		v.SetDefault(f.key, f.value)
	}

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags(), opts.Defaults); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("MORPHTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := v.BindEnv("encoder.ort_library_path", "MORPHTAG_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("morphtag")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// bindFlags binds each registered flag to its nested key. Flags absent from
// fs are skipped so commands may register a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, defaults Config) error {
	for _, f := range fields(defaults) {
		pf := fs.Lookup(f.flag)
		if pf == nil {
			continue
		}

		if err := v.BindPFlag(f.key, pf); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.flag, err)
		}
	}

	return nil
}
