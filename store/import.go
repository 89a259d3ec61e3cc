package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/onnwee/spin-tracker/telemetry"
)

// requiredColumns are the header columns an import buffer must carry for
// each kind. Anything less is rejected before the destination is touched.
func requiredColumns(kind Kind) []string {
	switch kind {
	case KindBits:
		return []string{"Timestamp", "Username", "Bits"}
	case KindGiftSubs:
		return []string{"Timestamp", "Username", "SubCount"}
	case KindCommands:
		return []string{"Timestamp", "Username", "Command"}
	}
	panic(fmt.Sprintf("unknown store kind %q", kind))
}

// Import parses a foreign buffer in the store's delimited format, validates
// its header, deduplicates against timestamps already present, and appends
// only the novel rows. Before any mutation a ".bak" copy of the destination
// is written so a bad import can be undone by restoring it. Returns the
// number of rows appended; zero with a nil error means everything in the
// buffer already existed.
func (s *Store) Import(kind Kind, raw []byte) (int, error) {
	s.locks[kind].Lock()
	defer s.locks[kind].Unlock()

	rows := splitLines(strings.TrimSpace(string(raw)))
	if len(rows) == 0 {
		return 0, &ValidationError{Reason: fmt.Sprintf("empty %s import", kind)}
	}
	importHeader := rows[0]
	for _, col := range requiredColumns(kind) {
		if !strings.Contains(importHeader, col) {
			return 0, &ValidationError{
				Reason: fmt.Sprintf("invalid %s import: header must include %s", kind, strings.Join(requiredColumns(kind), ", ")),
			}
		}
	}

	dst := s.path(kind)
	current, err := os.ReadFile(dst)
	if err != nil {
		return 0, fmt.Errorf("read %s store: %w", kind, err)
	}
	if err := os.WriteFile(dst+".bak", current, 0o644); err != nil {
		return 0, fmt.Errorf("write %s backup: %w", kind, err)
	}

	existing := map[string]struct{}{}
	currentLines := splitLines(string(current))
	for _, line := range dataLines(currentLines) {
		existing[strings.TrimSpace(firstField(line))] = struct{}{}
	}

	novel := make([]string, 0, len(rows)-1)
	for _, line := range rows[1:] {
		ts := strings.TrimSpace(firstField(line))
		if _, dup := existing[ts]; dup {
			continue
		}
		existing[ts] = struct{}{}
		novel = append(novel, line)
	}
	if len(novel) == 0 {
		return 0, nil
	}

	if err := s.appendLineLocked(kind, strings.Join(novel, "\n")); err != nil {
		return 0, err
	}
	telemetry.AddImportedRows(len(novel))
	return len(novel), nil
}
