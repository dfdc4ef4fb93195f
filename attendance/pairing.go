/*
pairing.go - Canonical scan pairing state machine

PURPOSE:
  Decides, for the scans of one subject on one date, which scan is the
  arrival and which is the departure, and derives lateness, deduction and
  worked hours. The batch job applies it once per (subject, date) partition;
  the incremental updater applies the same rules one scan at a time.

ALGORITHM (single pass over scans in ascending timestamp order):
  1. hasArrival starts false.
  2. The first scan, or any scan at/before the departure threshold while no
     arrival is recorded, becomes the arrival.
  3. Every other scan is a departure candidate; the last one is kept.
  4. Status is Present when either timestamp is set, Absent otherwise.
  5. Deduction applies only to a departure strictly before the threshold.
  6. Worked hours require departure after arrival.
  7. The last non-empty scan name wins, else the placeholder name.

EDGE CASES:
  - Zero scans produce no record (ok=false).
  - One scan is an arrival with no departure and zero worked hours.
*/
package attendance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SortScans orders scans by timestamp, breaking ties by id so that the same
// input always pairs the same way.
func SortScans(scans []ScanEvent) {
	sort.SliceStable(scans, func(i, j int) bool {
		if scans[i].Timestamp.Equal(scans[j].Timestamp) {
			return scans[i].ID < scans[j].ID
		}
		return scans[i].Timestamp.Before(scans[j].Timestamp)
	})
}

// Pair reconciles the scans of one (subject, date) key into a record. The
// scans slice is sorted in place.
func Pair(s Schedule, subject SubjectID, date Date, scans []ScanEvent) (Record, bool) {
	if len(scans) == 0 {
		return Record{}, false
	}
	SortScans(scans)

	departureThreshold := s.DepartureOn(date)

	var (
		arrival, departure *time.Time
		name               string
		hasArrival         bool
	)
	for i, scan := range scans {
		ts := scan.Timestamp
		if scan.DisplayName != "" {
			name = scan.DisplayName
		}
		if !hasArrival && (i == 0 || !ts.After(departureThreshold)) {
			arrival = &ts
			hasArrival = true
			continue
		}
		departure = &ts
	}

	rec := Record{
		SubjectID:      subject,
		Date:           date,
		ArrivalAt:      arrival,
		DepartureAt:    departure,
		DisplayName:    name,
		Status:         StatusAbsent,
		DeductionHours: decimal.Zero,
		WorkedHours:    WorkedHours(arrival, departure),
	}
	if rec.DisplayName == "" {
		rec.DisplayName = PlaceholderName(subject)
	}
	if arrival != nil || departure != nil {
		rec.Status = StatusPresent
	}
	if arrival != nil {
		rec.IsLate = arrival.After(s.ArrivalOn(date))
	}
	if departure != nil && departure.Before(departureThreshold) {
		rec.DeductionHours = nonNegative(HoursBetween(*departure, departureThreshold))
	}
	return rec, true
}

// Partition groups scans by (subject, date key). Scans failing validation are
// returned separately.
func Partition(s Schedule, scans []ScanEvent) (map[RecordKey][]ScanEvent, []ScanEvent) {
	parts := make(map[RecordKey][]ScanEvent)
	var malformed []ScanEvent
	for _, scan := range scans {
		if err := scan.Validate(); err != nil {
			malformed = append(malformed, scan)
			continue
		}
		k := RecordKey{SubjectID: scan.SubjectID, Date: s.DateKey(scan.Timestamp)}
		parts[k] = append(parts[k], scan)
	}
	return parts, malformed
}

// SortedKeys returns the partition keys in subject, then date order.
func SortedKeys(parts map[RecordKey][]ScanEvent) []RecordKey {
	keys := make([]RecordKey, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SubjectID == keys[j].SubjectID {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].SubjectID < keys[j].SubjectID
	})
	return keys
}
