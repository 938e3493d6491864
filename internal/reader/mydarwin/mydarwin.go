// Package mydarwin reads inter-beat interval CSV exports from the
// MyDarwin analysis service. Each row is one beat: interval in
// milliseconds and a numeric beat classification.
package mydarwin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sigvault/internal/series"
)

// ReadFile reads one IBI export. The time axis is the running sum of the
// preceding intervals in seconds, so each beat sits at the end of the
// beat before it. The export carries no absolute start time.
func ReadFile(fname string) (series.Dataset, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")

	var intervals, beatTypes []float64
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s: row %d has %d fields, want 2", fname, i+1, len(fields))
		}
		interval, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			// First line may be a header.
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("%s: row %d: parse interval: %w", fname, i+1, err)
		}
		beatType, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: parse beat type: %w", fname, i+1, err)
		}
		intervals = append(intervals, interval)
		beatTypes = append(beatTypes, beatType)
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("%s: no beats", fname)
	}

	timeVec := make([]float64, len(intervals))
	cum := 0.0
	for i, iv := range intervals {
		timeVec[i] = cum
		cum += iv / 1000.0
	}

	meta := series.NewMeta(time.Time{}, 0)
	return series.Dataset{
		{Name: "ibi", Samples: intervals, Time: timeVec, Meta: meta},
		{Name: "beat_type", Samples: beatTypes, Time: timeVec, Meta: meta},
	}, nil
}
