package config

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	EncoderONNX = "onnx"
	EncoderHash = "hash"

	TagVariantSentence = "sentence"
	TagVariantToken    = "token"

	TokenizerWordPiece     = "wordpiece"
	TokenizerSentencePiece = "sentencepiece"
	TokenizerHash          = "hash"
)

func NormalizeEncoderKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	switch kind {
	case "", EncoderONNX, "ort":
		return EncoderONNX, nil
	case EncoderHash:
		return EncoderHash, nil
	default:
		return "", fmt.Errorf("invalid encoder %q (expected %s|%s)", raw, EncoderONNX, EncoderHash)
	}
}

func NormalizeTagVariant(raw string) (string, error) {
	variant := strings.ToLower(strings.TrimSpace(raw))
	switch variant {
	case "", TagVariantSentence, "bilstm":
		return TagVariantSentence, nil
	case TagVariantToken:
		return TagVariantToken, nil
	default:
		return "", fmt.Errorf("invalid tag variant %q (expected %s|%s)", raw, TagVariantSentence, TagVariantToken)
	}
}

func NormalizeTokenizerKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	switch kind {
	case "", TokenizerWordPiece, "bert":
		return TokenizerWordPiece, nil
	case TokenizerSentencePiece, "spm":
		return TokenizerSentencePiece, nil
	case TokenizerHash:
		return TokenizerHash, nil
	default:
		return "", fmt.Errorf(
			"invalid tokenizer %q (expected %s|%s|%s)",
			raw,
			TokenizerWordPiece,
			TokenizerSentencePiece,
			TokenizerHash,
		)
	}
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}
