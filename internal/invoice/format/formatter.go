// Package format renders stored invoice sequence numbers for display.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// DefaultTemplate yields numbers such as RE-2025-000042.
const DefaultTemplate = "{PREFIX}-{YYYY}-{SEQ6}"

// DisplayNumber renders seq with the default template. The year is the
// issue year; the sequence itself never resets.
func DisplayNumber(prefix string, issuedAt time.Time, seq int64) (string, error) {
	return Render(DefaultTemplate, prefix, issuedAt, seq)
}

// Render substitutes {PREFIX}, {YYYY}, {YY}, {MM}, {SEQ} and {SEQn} tokens.
func Render(template, prefix string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	prefix = strings.TrimSpace(prefix)
	out := template
	if prefix == "" {
		out = strings.ReplaceAll(out, "{PREFIX}-", "")
	}
	out = strings.ReplaceAll(out, "{PREFIX}", prefix)
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice number: %s", out)
	}
	return out, nil
}
