// Package store provides durable, self-migrating delimited-file persistence
// for the three record kinds the tracker accounts for: bit donations, gift
// subs, and spin command audit entries. Each kind lives in its own CSV file
// with a mandatory header row.
//
// Mutations are read-entire-file, modify-in-memory, write-entire-file. That
// is deliberately simple and crash-tolerant (a rewrite can never leave one
// row half-updated), but two concurrent mutations of the same kind would be
// a lost-update race, so every file operation of a given kind is serialized
// behind a per-kind mutex. Different kinds touch different files and proceed
// independently.
//
// The store only persists; it never emits events. Callers (the ledger
// service, the command resolver) publish on the bus after a successful write.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Kind selects one of the three record stores.
type Kind string

const (
	KindBits     Kind = "bits"
	KindGiftSubs Kind = "giftsubs"
	KindCommands Kind = "commands"
)

// Kinds lists every store kind in a stable order.
func Kinds() []Kind { return []Kind{KindBits, KindGiftSubs, KindCommands} }

// ParseKind maps an external kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBits:
		return KindBits, true
	case KindGiftSubs:
		return KindGiftSubs, true
	case KindCommands:
		return KindCommands, true
	}
	return "", false
}

const (
	donationFile = "bit_donations.csv"
	giftSubFile  = "gift_subs.csv"
	commandFile  = "spin_commands.csv"

	donationHeader = "Timestamp,Username,Bits,Message,SpinTriggered,SpinCompletedCount"
	giftSubHeader  = "Timestamp,Username,SubCount,RecipientUsernames,SpinTriggered,SpinCompletedCount"
	commandHeader  = "Timestamp,Username,Command"

	// completedColumn was added after the first release; files written with
	// the old header are migrated on first read.
	completedColumn = "SpinCompletedCount"
)

// Store owns the on-disk record files under a single data directory.
type Store struct {
	dir   string
	locks map[Kind]*sync.Mutex
}

// Open creates the data directory and any missing store files (current-schema
// header only) and returns a ready Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir: dir,
		locks: map[Kind]*sync.Mutex{
			KindBits:     {},
			KindGiftSubs: {},
			KindCommands: {},
		},
	}
	for _, kind := range Kinds() {
		path := s.path(kind)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := writeAtomic(path, header(kind)+"\n"); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", path, err)
		}
	}
	return s, nil
}

// Dir returns the data directory the store was opened on.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(kind Kind) string {
	switch kind {
	case KindBits:
		return filepath.Join(s.dir, donationFile)
	case KindGiftSubs:
		return filepath.Join(s.dir, giftSubFile)
	case KindCommands:
		return filepath.Join(s.dir, commandFile)
	}
	panic(fmt.Sprintf("unknown store kind %q", kind))
}

func header(kind Kind) string {
	switch kind {
	case KindBits:
		return donationHeader
	case KindGiftSubs:
		return giftSubHeader
	case KindCommands:
		return commandHeader
	}
	panic(fmt.Sprintf("unknown store kind %q", kind))
}

// FileName returns the base name of the on-disk file for kind, as used in
// exports and imports.
func FileName(kind Kind) string {
	switch kind {
	case KindBits:
		return donationFile
	case KindGiftSubs:
		return giftSubFile
	case KindCommands:
		return commandFile
	}
	panic(fmt.Sprintf("unknown store kind %q", kind))
}

// AppendDonation serializes one bit donation and appends it to the donation
// store. The write does not block gift sub or command operations.
func (s *Store) AppendDonation(d BitDonation) error {
	s.locks[KindBits].Lock()
	defer s.locks[KindBits].Unlock()
	return s.appendLineLocked(KindBits, donationLine(d))
}

// AppendGiftSub serializes one gift sub bundle and appends it.
func (s *Store) AppendGiftSub(g GiftSub) error {
	s.locks[KindGiftSubs].Lock()
	defer s.locks[KindGiftSubs].Unlock()
	return s.appendLineLocked(KindGiftSubs, giftSubLine(g))
}

// AppendCommand appends one spin command audit entry. Command records are
// append-only and never mutated.
func (s *Store) AppendCommand(c SpinCommand) error {
	s.locks[KindCommands].Lock()
	defer s.locks[KindCommands].Unlock()
	return s.appendLineLocked(KindCommands, commandLine(c))
}

func (s *Store) appendLineLocked(kind Kind, line string) error {
	f, err := os.OpenFile(s.path(kind), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s store: %w", kind, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append to %s store: %w", kind, err)
	}
	return nil
}

// DeleteAll truncates the given stores (all three when none are named) back
// to a current-schema header row. Individual records are never deleted; this
// bulk wipe is the only destructive operation.
func (s *Store) DeleteAll(kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	for _, kind := range kinds {
		s.locks[kind].Lock()
		err := writeAtomic(s.path(kind), header(kind)+"\n")
		s.locks[kind].Unlock()
		if err != nil {
			return fmt.Errorf("reset %s store: %w", kind, err)
		}
	}
	return nil
}

// writeAtomic replaces path via a temp file and rename so readers never see
// a partially written store.
func writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// splitLines returns the non-blank lines of a store file.
func splitLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
