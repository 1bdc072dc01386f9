// Package rawingest turns daily raw BGP dump files into the processed
// series store format consumed by the rest of the engine. Grounded on
// count_daily_prefixes, count_daily_conflicts, date_from_filename and
// update_day in original_source/.../prepare_data/prepare.py — not a
// spec.md requirement on its own (spec.md §1 puts ingestion out of
// scope for the core), but §6 documents the wire format a producer must
// emit, and a complete repo needs that producer.
package rawingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ANSSI-FR/route-leaks/internal/seriesstore"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

const dateLayout = "2006-01-02"

// prefixAnnounce mirrors one line of a daily prefixes dump:
// {"day": "2016-01-01", "origin_asn": 1000, "num_prefixes": 2, "prefixes": [...]}
type prefixAnnounce struct {
	OriginASN   uint32 `json:"origin_asn"`
	NumPrefixes int    `json:"num_prefixes"`
}

// conflictEvent mirrors one line of a daily conflicts dump:
// {"origin": {"asn": 174}, "hijacker": {"asn": 62826}, ...}
type conflictEvent struct {
	Origin   struct{ ASN uint32 `json:"asn"` } `json:"origin"`
	Hijacker struct{ ASN uint32 `json:"asn"` } `json:"hijacker"`
}

// CountDailyPrefixes aggregates one day's prefix-announce dump into
// {asn: total prefixes announced that day}, matching count_daily_prefixes.
func CountDailyPrefixes(r *bufio.Reader) (map[uint32]int, error) {
	out := map[uint32]int{}
	dec := json.NewDecoder(r)
	for dec.More() {
		var line prefixAnnounce
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("rawingest: decoding prefix line: %w", err)
		}
		out[line.OriginASN] += line.NumPrefixes
	}
	return out, nil
}

// CountDailyConflicts aggregates one day's conflict-event dump into
// {asn: distinct number of origin ASes the hijacker AS conflicted with
// that day}, matching count_daily_conflicts.
func CountDailyConflicts(r *bufio.Reader) (map[uint32]int, error) {
	seen := map[uint32]map[uint32]struct{}{}
	dec := json.NewDecoder(r)
	for dec.More() {
		var line conflictEvent
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("rawingest: decoding conflict line: %w", err)
		}
		hijacker := line.Hijacker.ASN
		if seen[hijacker] == nil {
			seen[hijacker] = map[uint32]struct{}{}
		}
		seen[hijacker][line.Origin.ASN] = struct{}{}
	}
	out := make(map[uint32]int, len(seen))
	for asn, origins := range seen {
		out[asn] = len(origins)
	}
	return out, nil
}

// DateFromFilename extracts the YYYY-MM-DD date a daily dump file is
// named for, matching date_from_filename's "path/to/file/YYYY-MM-DD.ext"
// convention.
func DateFromFilename(path string) (time.Time, error) {
	base := filepath.Base(path)
	day := strings.SplitN(base, ".", 2)[0]
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("rawingest: filenames must be date-named like 2016-01-01.json, got %s", base)
	}
	return t, nil
}

// BuildFromDirectory reads every dump file in dir, ordered by the date
// encoded in its filename, and assembles a processed series store using
// countFn to aggregate each day. This is update_day's incremental merge
// collapsed into a single batch pass, since the engine here always
// rebuilds the full store rather than patching one file in place.
func BuildFromDirectory(dir string, countFn func(*bufio.Reader) (map[uint32]int, error)) (*seriesstore.Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rawingest: reading %s: %w", dir, err)
	}

	type dayFile struct {
		date time.Time
		path string
	}
	var days []dayFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		d, err := DateFromFilename(path)
		if err != nil {
			continue // skip files that aren't day-named dumps
		}
		days = append(days, dayFile{date: d, path: path})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	if len(days) == 0 {
		return nil, fmt.Errorf("rawingest: no day-named dump files found in %s", dir)
	}

	out := &seriesstore.Store{StartDate: days[0].date.Format(dateLayout), Data: models.Store{}}
	for i, day := range days {
		f, err := os.Open(day.path)
		if err != nil {
			return nil, fmt.Errorf("rawingest: opening %s: %w", day.path, err)
		}
		counts, err := countFn(bufio.NewReader(f))
		f.Close()
		if err != nil {
			return nil, err
		}
		for asn, count := range counts {
			series, ok := out.Data[asn]
			if !ok {
				series = make(models.Series, i)
			}
			out.Data[asn] = append(series, float64(count))
		}
		// ASes silent on this day but present in an earlier one get an
		// explicit zero, matching update_day's "add 0 for ASes not in
		// day_data" pass.
		for asn, series := range out.Data {
			if len(series) == i {
				out.Data[asn] = append(series, 0)
			}
		}
	}
	return out, nil
}
