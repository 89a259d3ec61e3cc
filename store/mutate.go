package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/onnwee/spin-tracker/telemetry"
)

// UpdateDonation locates the donation row whose timestamp equals the trimmed
// argument, applies update, and rewrites the whole file. Only SpinTriggered
// and SpinCompletedCount are meant to change; a negative completed count is
// clamped to zero before writing. Returns ErrNotFound (file untouched) when
// no row matches, and an error when the store file is missing entirely —
// reads tolerate a missing file, mutations do not.
func (s *Store) UpdateDonation(timestamp string, update func(*BitDonation)) (BitDonation, error) {
	s.locks[KindBits].Lock()
	defer s.locks[KindBits].Unlock()

	var updated BitDonation
	err := s.mutateLocked(KindBits, timestamp, func(fields []string) (string, error) {
		d, ok := donationFromFields(fields)
		if !ok {
			return "", fmt.Errorf("malformed donation row at %s", fields[0])
		}
		update(&d)
		if d.SpinCompletedCount < 0 {
			d.SpinCompletedCount = 0
		}
		updated = d
		return donationLine(d), nil
	})
	return updated, err
}

// UpdateGiftSub is the gift sub counterpart of UpdateDonation.
func (s *Store) UpdateGiftSub(timestamp string, update func(*GiftSub)) (GiftSub, error) {
	s.locks[KindGiftSubs].Lock()
	defer s.locks[KindGiftSubs].Unlock()

	var updated GiftSub
	err := s.mutateLocked(KindGiftSubs, timestamp, func(fields []string) (string, error) {
		g, ok := giftSubFromFields(fields)
		if !ok {
			return "", fmt.Errorf("malformed gift sub row at %s", fields[0])
		}
		update(&g)
		if g.SpinCompletedCount < 0 {
			g.SpinCompletedCount = 0
		}
		updated = g
		return giftSubLine(g), nil
	})
	return updated, err
}

// mutateLocked implements the shared read-rewrite cycle: migrate if needed,
// find the row keyed by timestamp, replace exactly that line with the
// rewriter's output, keep every other line byte-identical.
func (s *Store) mutateLocked(kind Kind, timestamp string, rewrite func(fields []string) (string, error)) error {
	if _, err := os.Stat(s.path(kind)); err != nil {
		return fmt.Errorf("%s store not available: %w", kind, err)
	}
	lines, err := s.readMigratedLocked(kind)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(timestamp)
	matched := false
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	for _, line := range lines[1:] {
		if !matched && strings.TrimSpace(firstField(line)) == key {
			fields, err := parseFields(line)
			if err != nil {
				return fmt.Errorf("parse %s row %s: %w", kind, key, err)
			}
			replaced, err := rewrite(fields)
			if err != nil {
				return err
			}
			out = append(out, replaced)
			matched = true
			continue
		}
		out = append(out, line)
	}
	if !matched {
		return fmt.Errorf("%s record %s: %w", kind, key, ErrNotFound)
	}

	var werr error
	telemetry.TimeFunc(telemetry.StoreRewriteDuration, func() {
		werr = writeAtomic(s.path(kind), strings.Join(out, "\n")+"\n")
	})
	if werr != nil {
		return fmt.Errorf("rewrite %s store: %w", kind, werr)
	}
	return nil
}

// ClearCompleted zeroes the completed count on every row of kind that
// carries a positive one, in a single scan and one rewrite. Returns the
// number of rows changed; when nothing changed the file is left untouched.
// A missing store file has nothing to clear.
func (s *Store) ClearCompleted(kind Kind) (int, error) {
	if kind != KindBits && kind != KindGiftSubs {
		return 0, fmt.Errorf("kind %q carries no completed count", kind)
	}
	s.locks[kind].Lock()
	defer s.locks[kind].Unlock()

	if _, err := os.Stat(s.path(kind)); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s store not available: %w", kind, err)
	}
	lines, err := s.readMigratedLocked(kind)
	if err != nil {
		return 0, err
	}

	cleared := 0
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	for _, line := range lines[1:] {
		fields, err := parseFields(line)
		if err != nil {
			out = append(out, line)
			continue
		}
		switch kind {
		case KindBits:
			d, ok := donationFromFields(fields)
			if !ok || d.SpinCompletedCount <= 0 {
				out = append(out, line)
				continue
			}
			d.SpinCompletedCount = 0
			out = append(out, donationLine(d))
		case KindGiftSubs:
			g, ok := giftSubFromFields(fields)
			if !ok || g.SpinCompletedCount <= 0 {
				out = append(out, line)
				continue
			}
			g.SpinCompletedCount = 0
			out = append(out, giftSubLine(g))
		}
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}

	var werr error
	telemetry.TimeFunc(telemetry.StoreRewriteDuration, func() {
		werr = writeAtomic(s.path(kind), strings.Join(out, "\n")+"\n")
	})
	if werr != nil {
		return 0, fmt.Errorf("rewrite %s store: %w", kind, werr)
	}
	return cleared, nil
}
