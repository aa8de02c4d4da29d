package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Vocabulary utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate control symbols and model dimensions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			v, err := loadVocabs(cfg)
			if err != nil {
				return err
			}

			mc, err := morphConfig(cfg, v)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "chars: %d symbols (<s>=%d </s>=%d <sep>=%d <pad>=%d)\n",
				v.Chars.Size(), v.CharSymbols.SOS, v.CharSymbols.EOS, v.CharSymbols.SEP, v.CharSymbols.PAD)
			_, _ = fmt.Fprintf(out, "tags: %d symbols (<s>=%d </s>=%d <pad>=%d)\n",
				v.Tags.Size(), v.TagSymbols.SOS, v.TagSymbols.EOS, v.TagSymbols.PAD)
			_, err = fmt.Fprintf(out, "model: %d layers x %d hidden, encoder width %d, tag variant %s\n",
				mc.NumLayers, mc.HiddenSize, mc.EncoderHiddenSize, mc.TagVariant)

			return err
		},
	})

	return cmd
}
