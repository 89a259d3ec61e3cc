package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/onnwee/spin-tracker/telemetry"
)

// Donations returns every bit donation in file order plus aggregate stats.
// A store file that does not exist yet yields an empty result, not an error.
// If the file still carries the pre-SpinCompletedCount header it is migrated
// (one full rewrite) before parsing.
func (s *Store) Donations() ([]BitDonation, DonationStats, error) {
	s.locks[KindBits].Lock()
	defer s.locks[KindBits].Unlock()

	lines, err := s.readMigratedLocked(KindBits)
	if err != nil {
		return nil, DonationStats{}, err
	}
	donations := make([]BitDonation, 0, max(len(lines)-1, 0))
	for _, line := range dataLines(lines) {
		fields, err := parseFields(line)
		if err != nil {
			continue
		}
		if d, ok := donationFromFields(fields); ok {
			donations = append(donations, d)
		}
	}
	return donations, donationStats(donations), nil
}

// GiftSubs returns every gift sub record in file order plus aggregate stats,
// migrating the file first when needed.
func (s *Store) GiftSubs() ([]GiftSub, GiftSubStats, error) {
	s.locks[KindGiftSubs].Lock()
	defer s.locks[KindGiftSubs].Unlock()

	lines, err := s.readMigratedLocked(KindGiftSubs)
	if err != nil {
		return nil, GiftSubStats{}, err
	}
	giftSubs := make([]GiftSub, 0, max(len(lines)-1, 0))
	for _, line := range dataLines(lines) {
		fields, err := parseFields(line)
		if err != nil {
			continue
		}
		if g, ok := giftSubFromFields(fields); ok {
			giftSubs = append(giftSubs, g)
		}
	}
	return giftSubs, giftSubStats(giftSubs), nil
}

// Commands returns every spin command audit entry in file order plus stats.
// The command store has no derived columns and never migrates.
func (s *Store) Commands() ([]SpinCommand, CommandStats, error) {
	s.locks[KindCommands].Lock()
	defer s.locks[KindCommands].Unlock()

	lines, err := s.readLinesLocked(KindCommands)
	if err != nil {
		return nil, CommandStats{}, err
	}
	commands := make([]SpinCommand, 0, max(len(lines)-1, 0))
	for _, line := range dataLines(lines) {
		fields, err := parseFields(line)
		if err != nil {
			continue
		}
		if c, ok := commandFromFields(fields); ok {
			commands = append(commands, c)
		}
	}
	return commands, commandStats(commands), nil
}

// FindLatestDonationByUser returns the newest donation whose username matches
// case-insensitively, or ok=false when the user has none.
func (s *Store) FindLatestDonationByUser(username string) (BitDonation, bool, error) {
	donations, _, err := s.Donations()
	if err != nil {
		return BitDonation{}, false, err
	}
	target := strings.ToLower(strings.TrimSpace(username))
	var best BitDonation
	found := false
	for _, d := range donations {
		if strings.ToLower(d.Username) != target {
			continue
		}
		// ISO-8601 instants in a uniform format order lexicographically.
		if !found || d.Timestamp > best.Timestamp {
			best = d
			found = true
		}
	}
	return best, found, nil
}

// FindLatestGiftSubByUser is the gift sub counterpart of
// FindLatestDonationByUser.
func (s *Store) FindLatestGiftSubByUser(username string) (GiftSub, bool, error) {
	giftSubs, _, err := s.GiftSubs()
	if err != nil {
		return GiftSub{}, false, err
	}
	target := strings.ToLower(strings.TrimSpace(username))
	var best GiftSub
	found := false
	for _, g := range giftSubs {
		if strings.ToLower(g.Username) != target {
			continue
		}
		if !found || g.Timestamp > best.Timestamp {
			best = g
			found = true
		}
	}
	return best, found, nil
}

// readLinesLocked returns the non-blank lines of the store file, or nil when
// the file does not exist.
func (s *Store) readLinesLocked(kind Kind) ([]string, error) {
	data, err := os.ReadFile(s.path(kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s store: %w", kind, err)
	}
	return splitLines(string(data)), nil
}

// readMigratedLocked reads the store file and, when its header predates the
// SpinCompletedCount column, rewrites the whole file once: the column is
// appended to the header and a default 0 to every old-schema row. Rows that
// already carry the extra trailing field are left byte-identical, which makes
// the migration idempotent.
func (s *Store) readMigratedLocked(kind Kind) ([]string, error) {
	lines, err := s.readLinesLocked(kind)
	if err != nil || lines == nil {
		return lines, err
	}
	if strings.Contains(lines[0], completedColumn) {
		return lines, nil
	}

	oldWidth := countFields(lines[0])
	migrated := make([]string, 0, len(lines))
	migrated = append(migrated, strings.TrimSpace(lines[0])+","+completedColumn)
	for _, line := range lines[1:] {
		if countFields(line) == oldWidth {
			migrated = append(migrated, line+",0")
		} else {
			migrated = append(migrated, line)
		}
	}

	var werr error
	telemetry.TimeFunc(telemetry.StoreRewriteDuration, func() {
		werr = writeAtomic(s.path(kind), strings.Join(migrated, "\n")+"\n")
	})
	if werr != nil {
		return nil, fmt.Errorf("migrate %s store: %w", kind, werr)
	}
	telemetry.IncStoreMigrations()
	return migrated, nil
}

// dataLines strips the header row.
func dataLines(lines []string) []string {
	if len(lines) <= 1 {
		return nil
	}
	return lines[1:]
}
