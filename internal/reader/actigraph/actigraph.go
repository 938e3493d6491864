// Package actigraph reads CSV exports from an Actigraph activity
// monitor. The file carries an 11-line header; the column count decides
// the format: three columns of raw acceleration at 50 Hz, or eleven
// columns of IMU data at 100 Hz where the first column is a timestamp
// and is dropped.
package actigraph

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sigvault/internal/series"
)

const (
	headerLines = 11
	startLayout = "2.1.2006 15:04:05"

	rawRate = 50  // Hz, 3-column raw export
	imuRate = 100 // Hz, 11-column IMU export
)

// ReadFile reads one Actigraph CSV export into one channel per column,
// all sharing a time vector derived from the format's sampling rate.
// Channel names come from the header's label line, lowercased with
// spaces replaced by underscores.
func ReadFile(fname string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) <= headerLines {
		return nil, fmt.Errorf("%s: shorter than the %d-line header", fname, headerLines)
	}

	// Header lines 3 and 4 hold "Start Time hh:mm:ss" and
	// "Start Date dd.mm.yyyy"; the label prefix is 11 characters.
	startTime, err := headerValue(lines[2])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	startDate, err := headerValue(lines[3])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	start, err := time.Parse(startLayout, startDate+" "+startTime)
	if err != nil {
		return nil, fmt.Errorf("%s: parse start time: %w", fname, err)
	}

	labels := splitLabels(lines[headerLines-1])

	var rate float64
	firstCol := 0
	switch len(labels) {
	case 3:
		rate = rawRate
	case 11:
		// IMU exports lead with a timestamp column.
		rate = imuRate
		firstCol = 1
		labels = labels[1:]
	default:
		return nil, fmt.Errorf("%s: %d columns, want 3 (raw) or 11 (imu)", fname, len(labels))
	}

	rows := lines[headerLines:]
	columns := make([][]float64, len(labels))
	for i := range columns {
		columns[i] = make([]float64, 0, len(rows))
	}
	for _, line := range rows {
		fields := strings.Split(line, ",")
		if len(fields) < firstCol+len(labels) {
			return nil, fmt.Errorf("%s: row has %d fields, want %d", fname, len(fields), firstCol+len(labels))
		}
		for i := range labels {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[firstCol+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: parse sample: %w", fname, err)
			}
			columns[i] = append(columns[i], v)
		}
	}

	timeVec := make([]float64, len(rows))
	for i := range timeVec {
		timeVec[i] = float64(i) / rate
	}

	meta := series.NewMeta(start, rate)
	stop := start.Add(time.Duration(float64(len(rows)) / rate * float64(time.Second)))
	meta["time_stop"] = series.TimeValue(stop)

	ds := make(series.Dataset, len(labels))
	for i, label := range labels {
		ds[i] = series.Channel{Name: label, Samples: columns[i], Time: timeVec, Meta: meta}
	}
	return ds, nil
}

// headerValue returns the value part of a "Start Time hh:mm:ss" style
// header line: everything past the fixed 11-character label.
func headerValue(line string) (string, error) {
	line = strings.TrimSpace(line)
	if len(line) <= 11 {
		return "", fmt.Errorf("malformed header line %q", line)
	}
	return strings.TrimSpace(line[11:]), nil
}

// splitLabels normalizes the header's column labels: lowercased, spaces
// replaced with underscores.
func splitLabels(line string) []string {
	fields := strings.Split(line, ",")
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(f), " ", "_"))
	}
	return out
}

func readLines(fname string) ([]string, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}
