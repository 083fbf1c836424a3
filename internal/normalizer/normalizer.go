package normalizer

import (
	"regexp"
	"strings"

	"policy-rag/internal/config"
)

var (
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
	lineTrimRe = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	crRe       = regexp.MustCompile(`\r\n?`)
)

// Normalizer cleans raw extracted text before splitting. Each step is
// toggled independently; line endings are unified unconditionally.
type Normalizer struct {
	cfg config.NormalizerConfig
}

func New(cfg config.NormalizerConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize applies the configured cleaning steps. It is a pure function of
// its input and configuration and never fails: this sits on the ingestion
// hot path, so a malformed document must not cost the whole run.
//
// Tag stripping is a best-effort fallback. Callers that already ran a
// structured parser should pass pre-extracted text and disable it.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	text := crRe.ReplaceAllString(raw, "\n")

	if n.cfg.StripMarkup {
		text = tagRe.ReplaceAllString(text, " ")
	}
	if n.cfg.CollapseSpaces {
		text = spaceRunRe.ReplaceAllString(text, " ")
	}
	if n.cfg.CollapseBlank {
		text = lineTrimRe.ReplaceAllString(text, "")
		text = blankRunRe.ReplaceAllString(text, "\n\n")
	}
	if n.cfg.Lowercase {
		text = strings.ToLower(text)
	}

	return strings.TrimSpace(text)
}
