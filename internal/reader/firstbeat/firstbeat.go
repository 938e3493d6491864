// Package firstbeat reads exports from the Firstbeat Bodyguard device.
// All files are semicolon-delimited text in the SDF family, with decimal
// commas and a per-file header block: analysis feature vectors, misc
// feature vectors, inter-beat intervals and raw acceleration.
package firstbeat

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sigvault/internal/series"
)

const (
	featureTimeLayout = "2.1.2006 15:04:05"
	accTimeLayout     = "2.1.2006 15:04.05"
)

// ReadFeatures reads analysis feature vectors. The header block ends at
// the VECTORS marker; the next line names one column per feature. The
// first two data columns (cumulative seconds and wall-clock time) form
// the time axis and are not channels.
func ReadFeatures(fname string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}

	var startDate, startTime string
	marker := -1
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "SessionStartDate"):
			startDate = sdfField(line, 1)
		case strings.HasPrefix(line, "SessionStartTime"):
			startTime = sdfField(line, 1)
		case strings.TrimSpace(line) == "VECTORS":
			marker = i
		}
		if marker >= 0 {
			break
		}
	}
	if marker < 0 || marker+1 >= len(lines) {
		return nil, fmt.Errorf("%s: no VECTORS section", fname)
	}

	start, err := time.Parse(featureTimeLayout, startDate+" "+startTime)
	if err != nil {
		return nil, fmt.Errorf("%s: parse session start: %w", fname, err)
	}

	labels := splitSDF(lines[marker+1])
	if len(labels) < 3 {
		return nil, fmt.Errorf("%s: vector header too short", fname)
	}
	rows, err := parseSDFRows(lines[marker+2:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	timeVec := column(rows, 0)
	meta := series.NewMeta(start, 1)

	ds := make(series.Dataset, 0, len(labels)-2)
	for col := 2; col < len(labels); col++ {
		ds = append(ds, series.Channel{
			Name:    cleanLabel(labels[col]),
			Samples: column(rows, col),
			Time:    timeVec,
			Meta:    meta,
		})
	}
	return ds, nil
}

// ReadMiscFeatures reads the misc vector export. Channels are sampled at
// different (irregular) rates, so each channel keeps only the rows where
// its column holds a value, against the shared cumulative time column.
func ReadMiscFeatures(fname string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) < 5 {
		return nil, fmt.Errorf("%s: header too short", fname)
	}

	labels := splitSDF(lines[3])
	if len(labels) < 3 {
		return nil, fmt.Errorf("%s: vector header too short", fname)
	}
	rows, err := parseSDFRows(lines[4:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	// Column 2 is the cumulative time vector shared by every channel.
	const timeCol = 2
	timeVec := column(rows, timeCol)
	meta := series.NewMeta(time.Time{}, 0)

	var ds series.Dataset
	for col := range labels {
		if col == timeCol {
			continue
		}
		values := column(rows, col)
		chTime := make([]float64, 0, len(values))
		chVals := make([]float64, 0, len(values))
		for i, v := range values {
			if !math.IsNaN(v) {
				chTime = append(chTime, timeVec[i])
				chVals = append(chVals, v)
			}
		}
		ds = append(ds, series.Channel{
			Name:    cleanLabel(labels[col]),
			Samples: chVals,
			Time:    chTime,
			Meta:    meta,
		})
	}
	return ds, nil
}

// ReadIBI reads the inter-beat interval export. The time axis is the
// running sum of the preceding intervals, so each beat is placed at the
// end of the beat before it.
func ReadIBI(fname string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) < 6 {
		return nil, fmt.Errorf("%s: header too short", fname)
	}

	startField := lines[1]
	if i := strings.IndexByte(startField, ':'); i >= 0 {
		startField = strings.TrimSpace(startField[i+1:])
	}
	start, err := time.Parse(featureTimeLayout, startField)
	if err != nil {
		return nil, fmt.Errorf("%s: parse start time: %w", fname, err)
	}

	labels := splitSDF(lines[4])
	rows, err := parseSDFRows(lines[5:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	// Drop rows with no interval value before building the time axis.
	kept := rows[:0]
	for _, row := range rows {
		if len(row) > 0 && !math.IsNaN(row[0]) {
			kept = append(kept, row)
		}
	}

	timeVec := make([]float64, len(kept))
	cum := 0.0
	for i, row := range kept {
		timeVec[i] = cum
		cum += row[0] / 1000.0
	}

	meta := series.NewMeta(start, 0)
	ds := make(series.Dataset, len(labels))
	for col, label := range labels {
		ds[col] = series.Channel{
			Name:    cleanLabel(label),
			Samples: column(kept, col),
			Time:    timeVec,
			Meta:    meta,
		}
	}
	return ds, nil
}

// ReadACC reads the raw acceleration export. Only the 4G/8bit encoding is
// supported; raw counts scale to g by 1/32 and timestamps arrive in
// milliseconds.
func ReadACC(fname string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) < 6 {
		return nil, fmt.Errorf("%s: header too short", fname)
	}

	start, err := time.Parse(accTimeLayout, sdfField(lines[0], 1))
	if err != nil {
		return nil, fmt.Errorf("%s: parse start time: %w", fname, err)
	}
	gscale := sdfField(lines[1], 1)
	rateField := strings.TrimSuffix(sdfField(lines[2], 1), "Hz")
	sampleSize := sdfField(lines[3], 1)
	if gscale != "4G" || sampleSize != "8bit" {
		return nil, fmt.Errorf("%s: unsupported encoding %s/%s (want 4G/8bit)", fname, gscale, sampleSize)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(rateField), 64)
	if err != nil {
		return nil, fmt.Errorf("%s: parse sampling rate: %w", fname, err)
	}

	rows, err := parseSDFRows(lines[5:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	timeVec := column(rows, 0)
	for i := range timeVec {
		timeVec[i] /= 1000.0
	}

	meta := series.NewMeta(start, rate)
	labels := []string{"acc_x", "acc_y", "acc_z"}
	ds := make(series.Dataset, len(labels))
	for i, label := range labels {
		values := column(rows, i+1)
		for j := range values {
			values[j] /= 32.0
		}
		ds[i] = series.Channel{Name: label, Samples: values, Time: timeVec, Meta: meta}
	}
	return ds, nil
}

// cleanLabel strips the Vector suffix the export appends to every column
// name.
func cleanLabel(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "Vector", ""))
}

// sdfField returns field idx of a semicolon-delimited line, trimmed.
func sdfField(line string, idx int) string {
	fields := strings.Split(line, ";")
	if idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func splitSDF(line string) []string {
	fields := strings.Split(line, ";")
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, strings.TrimSpace(f))
		}
	}
	return out
}

// parseSDFRows parses data rows, converting decimal commas. Fields that
// do not parse become NaN so per-channel filtering can drop them.
func parseSDFRows(lines []string) ([][]float64, error) {
	rows := make([][]float64, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(strings.ReplaceAll(line, ",", "."), ";")
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				v = math.NaN()
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// column extracts column idx, padding short rows with NaN.
func column(rows [][]float64, idx int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if idx < len(row) {
			out[i] = row[idx]
		} else {
			out[i] = math.NaN()
		}
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
