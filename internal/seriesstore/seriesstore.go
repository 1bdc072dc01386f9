// Package seriesstore reads and writes the processed series store
// format described in spec.md §6: one JSON object per line, an optional
// {"start_date": "YYYY-MM-DD"} header line, then one {"<asn>": [...]}
// line per AS, every list the same length.
package seriesstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

const dateLayout = "2006-01-02"

// Store is a loaded series file: its AS-indexed data plus the optional
// start date that lets leak indices be rendered as calendar dates.
type Store struct {
	StartDate string // "" if unknown
	Data      models.Store
}

// Load reads a processed series store file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seriesstore: opening %s: %w", path, err)
	}
	defer f.Close()

	store := &Store{Data: models.Store{}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	first := true
	wantLen := -1
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var header struct {
				StartDate string `json:"start_date"`
			}
			if err := json.Unmarshal(line, &header); err == nil && header.StartDate != "" {
				store.StartDate = header.StartDate
				continue
			}
		}
		var row map[string][]float64
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("seriesstore: parsing line in %s: %w", path, err)
		}
		for asnStr, values := range row {
			asn, err := strconv.ParseUint(asnStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("seriesstore: invalid AS number %q in %s: %w", asnStr, path, err)
			}
			if wantLen == -1 {
				wantLen = len(values)
			} else if len(values) != wantLen {
				return nil, fmt.Errorf("seriesstore: %s: AS %s has series length %d, want %d", path, asnStr, len(values), wantLen)
			}
			store.Data[uint32(asn)] = models.Series(values)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seriesstore: reading %s: %w", path, err)
	}
	return store, nil
}

// LoadPair loads the prefix and conflict stores and enforces that their
// start dates agree, per spec.md §6 ("Start-date mismatch between the
// two is a hard error").
func LoadPair(pfxPath, cflPath string) (pfx, cfl *Store, err error) {
	pfx, err = Load(pfxPath)
	if err != nil {
		return nil, nil, err
	}
	cfl, err = Load(cflPath)
	if err != nil {
		return nil, nil, err
	}
	if pfx.StartDate != "" && cfl.StartDate != "" && pfx.StartDate != cfl.StartDate {
		return nil, nil, fmt.Errorf("seriesstore: start_date mismatch: prefixes=%s conflicts=%s", pfx.StartDate, cfl.StartDate)
	}
	return pfx, cfl, nil
}

// Save writes a series store back out in the same line-delimited format
// that Load reads.
func Save(path string, s *Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("seriesstore: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if s.StartDate != "" {
		header, _ := json.Marshal(map[string]string{"start_date": s.StartDate})
		if _, err := w.Write(append(header, '\n')); err != nil {
			return fmt.Errorf("seriesstore: writing header to %s: %w", path, err)
		}
	}
	for asn, series := range s.Data {
		row, _ := json.Marshal(map[string]models.Series{strconv.FormatUint(uint64(asn), 10): series})
		if _, err := w.Write(append(row, '\n')); err != nil {
			return fmt.Errorf("seriesstore: writing row to %s: %w", path, err)
		}
	}
	return w.Flush()
}
