package store

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ArchiveMeta is written as metadata.json into export archives so a later
// import knows where the data came from.
type ArchiveMeta struct {
	ExportDate       string `json:"exportDate"`
	ChannelName      string `json:"channelName"`
	BitThreshold     int    `json:"bitThreshold"`
	GiftSubThreshold int    `json:"giftSubThreshold"`
	AppVersion       string `json:"appVersion"`
}

// ExportFile copies one store file byte-for-byte to dst. Unmodified stores
// therefore export losslessly and re-import with zero novel rows.
func (s *Store) ExportFile(kind Kind, dst string) error {
	data, err := s.Snapshot(kind)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s export: %w", kind, err)
	}
	return nil
}

// Snapshot returns the current raw bytes of one store file. A missing file
// yields a header-only snapshot.
func (s *Store) Snapshot(kind Kind) ([]byte, error) {
	s.locks[kind].Lock()
	defer s.locks[kind].Unlock()

	data, err := os.ReadFile(s.path(kind))
	if os.IsNotExist(err) {
		return []byte(header(kind) + "\n"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s store: %w", kind, err)
	}
	return data, nil
}

// ExportArchive writes a zip containing the three store files plus a
// metadata.json manifest and a short README, suitable for later re-import.
func (s *Store) ExportArchive(w io.Writer, meta ArchiveMeta) error {
	if meta.ExportDate == "" {
		meta.ExportDate = time.Now().UTC().Format(time.RFC3339)
	}

	zw := zip.NewWriter(w)
	for _, kind := range Kinds() {
		data, err := s.Snapshot(kind)
		if err != nil {
			return err
		}
		f, err := zw.Create(FileName(kind))
		if err != nil {
			return fmt.Errorf("create archive entry %s: %w", FileName(kind), err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write archive entry %s: %w", FileName(kind), err)
		}
	}

	manifest, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive metadata: %w", err)
	}
	mf, err := zw.Create("metadata.json")
	if err != nil {
		return fmt.Errorf("create metadata.json: %w", err)
	}
	if _, err := mf.Write(manifest); err != nil {
		return fmt.Errorf("write metadata.json: %w", err)
	}

	rf, err := zw.Create("README.txt")
	if err != nil {
		return fmt.Errorf("create README.txt: %w", err)
	}
	if _, err := rf.Write([]byte(archiveReadme(meta))); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func archiveReadme(meta ArchiveMeta) string {
	channel := meta.ChannelName
	if channel == "" {
		channel = "Not set"
	}
	return `# Spin Tracker Export

This archive contains exported data from the spin tracker.

## Files included
- ` + donationFile + `: records of bit donations
- ` + giftSubFile + `: records of gift subscriptions
- ` + commandFile + `: records of !spin commands
- metadata.json: export information

Export date: ` + meta.ExportDate + `
Channel: ` + channel + `

To import this data, use the import endpoints.
`
}
