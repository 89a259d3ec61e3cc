package store

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// On-disk encoding for free-text fields (message, command): embedded
// delimiters become semicolons and quote characters are doubled inside the
// surrounding quotes. Reading reverses both, which is lossless for values
// that only contained the special characters (a genuine semicolon comes back
// as a comma; accepted limitation inherited from the format). Embedded
// newlines are not supported by the line-oriented format.

func escapeText(s string) string {
	return strings.ReplaceAll(s, ",", ";")
}

func unescapeText(s string) string {
	return strings.ReplaceAll(s, ";", ",")
}

// quoteField wraps s in quotes, doubling any embedded quote character.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func donationLine(d BitDonation) string {
	return fmt.Sprintf("%s,%s,%d,%s,%s,%d",
		d.Timestamp, quoteField(d.Username), d.Bits,
		quoteField(escapeText(d.Message)), yesNo(d.SpinTriggered), d.SpinCompletedCount)
}

func giftSubLine(g GiftSub) string {
	return fmt.Sprintf("%s,%s,%d,%s,%s,%d",
		g.Timestamp, quoteField(g.Username), g.SubCount,
		quoteField(strings.Join(g.Recipients, ", ")), yesNo(g.SpinTriggered), g.SpinCompletedCount)
}

func commandLine(c SpinCommand) string {
	return fmt.Sprintf("%s,%s,%s",
		c.Timestamp, quoteField(c.Username), quoteField(escapeText(c.Command)))
}

// parseFields splits one data line into its CSV fields, honoring quoted
// fields and doubled quotes.
func parseFields(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("parse row: %w", err)
	}
	return fields, nil
}

// countFields reports the number of CSV fields on the line, or -1 when the
// line cannot be parsed.
func countFields(line string) int {
	fields, err := parseFields(line)
	if err != nil {
		return -1
	}
	return len(fields)
}

// firstField returns the leading (timestamp) field of a data line. The
// timestamp column is written unquoted and never contains the delimiter.
func firstField(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		return line[:i]
	}
	return line
}

func donationFromFields(f []string) (BitDonation, bool) {
	if len(f) < 5 {
		return BitDonation{}, false
	}
	d := BitDonation{
		Timestamp:     f[0],
		Username:      f[1],
		Bits:          atoiDefault(f[2], 0),
		Message:       unescapeText(f[3]),
		SpinTriggered: strings.TrimSpace(f[4]) == "YES",
	}
	if len(f) >= 6 {
		d.SpinCompletedCount = atoiDefault(f[5], 0)
	}
	if d.SpinCompletedCount < 0 {
		d.SpinCompletedCount = 0
	}
	return d, true
}

func giftSubFromFields(f []string) (GiftSub, bool) {
	if len(f) < 5 {
		return GiftSub{}, false
	}
	g := GiftSub{
		Timestamp:     f[0],
		Username:      f[1],
		SubCount:      atoiDefault(f[2], 0),
		Recipients:    splitRecipients(f[3]),
		SpinTriggered: strings.TrimSpace(f[4]) == "YES",
	}
	if len(f) >= 6 {
		g.SpinCompletedCount = atoiDefault(f[5], 0)
	}
	if g.SpinCompletedCount < 0 {
		g.SpinCompletedCount = 0
	}
	return g, true
}

func commandFromFields(f []string) (SpinCommand, bool) {
	if len(f) < 3 {
		return SpinCommand{}, false
	}
	return SpinCommand{
		Timestamp: f[0],
		Username:  f[1],
		Command:   unescapeText(f[2]),
	}, true
}

// splitRecipients reverses the `", "` join used for the recipient list.
func splitRecipients(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
