package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aseker00/alephbert/internal/config"
	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/encoder"
	"github.com/aseker00/alephbert/internal/morph"
	"github.com/aseker00/alephbert/internal/nn"
	"github.com/aseker00/alephbert/internal/safetensors"
	"github.com/aseker00/alephbert/internal/train"
	"github.com/aseker00/alephbert/internal/vocab"
)

// checkpointPrefixes are wrapper prefixes stripped from checkpoint names.
var checkpointPrefixes = []string{"module.", "model."}

func loadVocabs(cfg config.Config) (dataset.Vocabs, error) {
	chars, err := vocab.Load(cfg.Paths.CharVocab)
	if err != nil {
		return dataset.Vocabs{}, err
	}

	tags, err := vocab.Load(cfg.Paths.TagVocab)
	if err != nil {
		return dataset.Vocabs{}, err
	}

	return dataset.NewVocabs(chars, tags)
}

// morphConfig derives the model dimensions from configuration and the
// loaded vocabularies.
func morphConfig(cfg config.Config, v dataset.Vocabs) (morph.Config, error) {
	variant, err := config.NormalizeTagVariant(cfg.Model.TagVariant)
	if err != nil {
		return morph.Config{}, err
	}

	mc := morph.Config{
		CharVocabSize:     v.Chars.Size(),
		TagVocabSize:      v.Tags.Size(),
		CharEmbeddingDim:  cfg.Model.CharEmbeddingDim,
		HiddenSize:        cfg.Model.HiddenSize,
		NumLayers:         cfg.Model.NumLayers,
		EncoderHiddenSize: cfg.Encoder.HiddenSize,
		EncDropout:        cfg.Model.EncDropout,
		DecDropout:        cfg.Model.DecDropout,
		OutDropout:        cfg.Model.OutDropout,
		TagVariant:        morph.TagVariant(variant),
		TagHiddenSize:     cfg.Model.TagHiddenSize,
		TagNumLayers:      cfg.Model.TagNumLayers,
		TagDropout:        cfg.Model.TagDropout,
		TagOutDropout:     cfg.Model.TagOutDropout,
		MaxLen:            cfg.Decode.MaxLen,
		MaxNumTags:        cfg.Decode.MaxNumTags,
	}

	if err := mc.Validate(); err != nil {
		return morph.Config{}, err
	}

	return mc, nil
}

// loadModel resolves model parameters from the checkpoint. A missing
// checkpoint is accepted only when model.seed enables initialisation.
func loadModel(cfg config.Config, v dataset.Vocabs) (*morph.Model, error) {
	mc, err := morphConfig(cfg, v)
	if err != nil {
		return nil, err
	}

	var store *safetensors.Store

	if cfg.Paths.Checkpoint != "" {
		store, err = safetensors.Open(cfg.Paths.Checkpoint, safetensors.Options{TrimPrefixes: checkpointPrefixes})
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) || cfg.Model.Seed == 0 {
				return nil, err
			}

			slog.Warn("checkpoint not found, initialising parameters", "path", cfg.Paths.Checkpoint, "seed", cfg.Model.Seed)
		}
	}

	var opts []nn.Option
	if cfg.Model.Seed != 0 {
		opts = append(opts, nn.WithInit(cfg.Model.Seed))
	}

	vb := nn.NewVarBuilder(store, opts...)

	m, err := morph.NewModel(mc, v.CharSymbols, vb)
	if err != nil {
		return nil, err
	}

	stats := vb.Stats()
	slog.Info("model ready",
		"loaded", stats.Loaded,
		"initialized", stats.Initialized,
		"tag_variant", string(mc.TagVariant),
		"max_len", mc.MaxLen,
		"max_num_tags", mc.MaxNumTags,
	)

	return m, nil
}

func newTokenizer(cfg config.Config) (encoder.SubwordTokenizer, error) {
	kind, err := config.NormalizeTokenizerKind(cfg.Encoder.Tokenizer)
	if err != nil {
		return nil, err
	}

	switch kind {
	case config.TokenizerSentencePiece:
		return encoder.NewSentencePieceTokenizer(cfg.Encoder.TokenizerPath, int64(cfg.Encoder.CLSID), int64(cfg.Encoder.SEPID))
	case config.TokenizerHash:
		return encoder.HashTokenizer{}, nil
	default:
		return encoder.NewWordPieceTokenizer(cfg.Encoder.TokenizerPath, cfg.Encoder.Lowercase)
	}
}

func newEncoder(cfg config.Config) (encoder.Encoder, error) {
	kind, err := config.NormalizeEncoderKind(cfg.Encoder.Kind)
	if err != nil {
		return nil, err
	}

	if kind == config.EncoderHash {
		return encoder.NewHashEncoder(cfg.Encoder.HiddenSize)
	}

	return encoder.NewONNXEncoder(encoder.ONNXConfig{
		LibraryPath: cfg.Encoder.ORTLibraryPath,
		APIVersion:  uint32(cfg.Encoder.ORTAPIVersion),
		ModelPath:   cfg.Encoder.ModelPath,
		OutputName:  cfg.Encoder.OutputName,
		Dim:         cfg.Encoder.HiddenSize,
	})
}

// pipeline is everything a command needs to run the model.
type pipeline struct {
	cfg       config.Config
	vocabs    dataset.Vocabs
	tokenizer encoder.SubwordTokenizer
	session   *train.Session
}

func newPipeline(cfg config.Config) (*pipeline, error) {
	v, err := loadVocabs(cfg)
	if err != nil {
		return nil, err
	}

	m, err := loadModel(cfg, v)
	if err != nil {
		return nil, err
	}

	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}

	enc, err := newEncoder(cfg)
	if err != nil {
		return nil, err
	}

	s, err := train.NewSession(m, v, enc,
		train.WithSeed(cfg.Train.Seed),
		train.WithTeacherForcing(cfg.Train.TeacherForcingRatio),
		train.WithFreezeEncoder(cfg.Train.FreezeEncoder),
		train.WithWorkers(cfg.Train.Workers),
		train.WithPrintEvery(cfg.Train.PrintEvery),
	)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}

	slog.Info("session started", "session", s.ID.String())

	return &pipeline{cfg: cfg, vocabs: v, tokenizer: tok, session: s}, nil
}

func (p *pipeline) Close() error {
	return p.session.Encoder.Close()
}

// encode turns samples into examples, logging runes the vocabulary lacks.
func (p *pipeline) encode(samples []dataset.Sample) ([]*dataset.Example, error) {
	out := make([]*dataset.Example, 0, len(samples))

	for _, s := range samples {
		ex, err := dataset.Encode(s, p.vocabs, p.cfg.Decode.MaxLen, p.cfg.Decode.MaxNumTags, p.tokenizer)
		if err != nil {
			return nil, err
		}

		if ex.Dropped > 0 {
			slog.Warn("unknown characters dropped", "sent_id", ex.ID, "count", ex.Dropped)
		}

		if limit := p.cfg.Encoder.MaxPositions; limit > 0 && len(ex.IDs) > limit {
			return nil, fmt.Errorf("sentence %s: %w: %d sub-words, limit %d", ex.ID, encoder.ErrTooLong, len(ex.IDs), limit)
		}

		out = append(out, ex)
	}

	return out, nil
}
