package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultInvoiceTemplate produces numbers such as INV-2025-00042.
const DefaultInvoiceTemplate = "INV-{YYYY}-{SEQ5}"

var (
	seqPadRe   = regexp.MustCompile(`\{SEQ(\d+)\}`)
	trailingRe = regexp.MustCompile(`(\d+)\D*$`)
)

// FormatInvoiceNumber renders an invoice number from a template, the issue
// time and the ledger's monotonic sequence.
//
// Supported tokens: {YYYY} {YY} {MM} {DD} {SEQ} and {SEQn} (zero padded to n).
// The template must contain a sequence token so numbers stay unique.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}
	if !strings.Contains(template, "{SEQ}") && !seqPadRe.MatchString(template) {
		return "", fmt.Errorf("invoice number template %q has no {SEQ} token", template)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
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
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// sequenceOf extracts the numeric sequence from an invoice number so the
// counter can be advanced past imported invoices. Legacy numbers of the
// form INV_12_2025 carry the sequence before the year.
func sequenceOf(number string) int64 {
	if parts := strings.Split(number, "_"); len(parts) == 3 && parts[0] == "INV" {
		if n, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			return n
		}
	}
	m := trailingRe.FindStringSubmatch(number)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
