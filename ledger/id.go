// Package ledger turns raw records into spin-credit accounting: which
// contributor events earned spins against the configured thresholds, how many
// of those spins are completed, and the safe transitions between the two.
package ledger

import (
	"fmt"
	"strings"

	"github.com/onnwee/spin-tracker/store"
)

// Tags used in the external credit item identifier, "<tag>_<timestamp>".
// Splitting on the first underscore is safe by construction: ISO-8601
// timestamps never contain one. If the timestamp format ever changes, this
// encoding must be revisited.
const (
	tagBits     = "bit"
	tagGiftSubs = "giftsub"
	idSeparator = "_"
)

// SpinID identifies one creditable record: its store kind and the timestamp
// that keys it there.
type SpinID struct {
	Kind      store.Kind
	Timestamp string
}

// String encodes the identifier in the external "<tag>_<timestamp>" format.
func (id SpinID) String() string {
	switch id.Kind {
	case store.KindBits:
		return tagBits + idSeparator + id.Timestamp
	case store.KindGiftSubs:
		return tagGiftSubs + idSeparator + id.Timestamp
	}
	return ""
}

// ParseSpinID reverses String. It is the only place the string form is taken
// apart.
func ParseSpinID(s string) (SpinID, error) {
	tag, ts, ok := strings.Cut(s, idSeparator)
	if !ok || ts == "" {
		return SpinID{}, fmt.Errorf("malformed spin id %q", s)
	}
	switch tag {
	case tagBits:
		return SpinID{Kind: store.KindBits, Timestamp: ts}, nil
	case tagGiftSubs:
		return SpinID{Kind: store.KindGiftSubs, Timestamp: ts}, nil
	}
	return SpinID{}, fmt.Errorf("unknown spin id tag %q", tag)
}
