// Package format renders human-readable invoice numbers from templates.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultInvoiceNumberTemplate = "INV-{SEQ6}"

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// FormatInvoiceNumber expands the date and sequence tokens in template for
// the given issue time and sequence value. Deterministic; allocation of the
// sequence itself happens elsewhere.
//
// Supported tokens: {YYYY} {YY} {MM} {DD} {SEQ} {SEQN} (zero-padded to N).
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	// Anything left in braces is a token we do not know.
	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}
