package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aseker00/alephbert/internal/config"
	"github.com/aseker00/alephbert/internal/doctor"
	"github.com/aseker00/alephbert/internal/encoder"
	"github.com/aseker00/alephbert/internal/safetensors"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local vocabulary, checkpoint and runtime checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg, err := doctorConfig(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}
}

func doctorConfig(cfg config.Config) (doctor.Config, error) {
	kind, err := config.NormalizeEncoderKind(cfg.Encoder.Kind)
	if err != nil {
		return doctor.Config{}, err
	}

	tok, err := config.NormalizeTokenizerKind(cfg.Encoder.Tokenizer)
	if err != nil {
		return doctor.Config{}, err
	}

	dcfg := doctor.Config{
		Vocabularies: func() (string, error) {
			v, err := loadVocabs(cfg)
			if err != nil {
				return "", err
			}

			if _, err := morphConfig(cfg, v); err != nil {
				return "", err
			}

			return fmt.Sprintf("%d chars, %d tags", v.Chars.Size(), v.Tags.Size()), nil
		},
		CheckpointPath:         cfg.Paths.Checkpoint,
		Checkpoint:             describeCheckpoint,
		AllowMissingCheckpoint: cfg.Model.Seed != 0,
		ORTLibrary: func() (string, error) {
			return encoder.ResolveLibrary(cfg.Encoder.ORTLibraryPath)
		},
		SkipORT: kind == config.EncoderHash,
	}

	if kind == config.EncoderONNX {
		dcfg.Files = append(dcfg.Files, doctor.File{Label: "encoder model", Path: cfg.Encoder.ModelPath})
	}

	if tok != config.TokenizerHash {
		dcfg.Files = append(dcfg.Files, doctor.File{Label: "tokenizer", Path: cfg.Encoder.TokenizerPath})
	}

	return dcfg, nil
}

func describeCheckpoint(path string) (string, error) {
	store, err := safetensors.Open(path, safetensors.Options{TrimPrefixes: checkpointPrefixes})
	if err != nil {
		return "", err
	}
	defer store.Close()

	return fmt.Sprintf("%s (%d tensors)", path, len(store.Names())), nil
}
