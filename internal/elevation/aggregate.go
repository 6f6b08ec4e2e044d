package elevation

import "time"

// Aggregate wraps the accepted records into a report. Every record is kept,
// successful or not, in the order given.
func Aggregate(records []ElevationRecord, now time.Time) ElevationReport {
	success := 0
	for _, r := range records {
		if r.Success {
			success++
		}
	}

	if now.IsZero() {
		now = time.Now()
	}

	return ElevationReport{
		Timestamp:    now.UTC(),
		TotalPoints:  len(records),
		SuccessCount: success,
		FailCount:    len(records) - success,
		Records:      records,
	}
}
