// Package empatica reads recordings from an Empatica E4 wristband: a
// folder of CSV files, one per sensor. Every file starts with the
// recording start as a UNIX timestamp; the regular-rate files carry the
// sampling rate on the second line, while the IBI file is irregular and
// stores explicit time offsets instead.
package empatica

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sigvault/internal/series"
)

// ReadFolder reads every known sensor file in dir into one dataset.
// Unknown CSV files are ignored.
func ReadFolder(dir string) (series.Dataset, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv files in %s", dir)
	}

	var ds series.Dataset
	for _, f := range files {
		var part series.Dataset
		var err error
		switch strings.TrimSuffix(filepath.Base(f), ".csv") {
		case "ACC":
			part, err = readGeneral(f, []string{"acc_x", "acc_y", "acc_z"}, 1.0/64.0)
		case "BVP":
			part, err = readGeneral(f, []string{"BVP"}, 1)
		case "EDA":
			part, err = readGeneral(f, []string{"EDA"}, 1)
		case "HR":
			part, err = readGeneral(f, []string{"HR"}, 1)
		case "TEMP":
			part, err = readGeneral(f, []string{"temperature"}, 1)
		case "IBI":
			part, err = readIBI(f, "IBI")
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		ds = append(ds, part...)
	}
	return ds, nil
}

// readGeneral reads a regular-rate sensor file. Line 1 holds the start
// timestamp, line 2 the sampling rate; each remaining line holds one
// sample per channel.
func readGeneral(fname string, labels []string, scale float64) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%s: missing header", fname)
	}

	start, err := parseUnixStart(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(strings.Split(lines[1], ",")[0]), 64)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("%s: invalid sampling rate", fname)
	}

	rows := lines[2:]
	columns := make([][]float64, len(labels))
	for i := range columns {
		columns[i] = make([]float64, 0, len(rows))
	}
	for _, line := range rows {
		fields := strings.Split(line, ",")
		if len(fields) < len(labels) {
			return nil, fmt.Errorf("%s: row has %d fields, want %d", fname, len(fields), len(labels))
		}
		for i := range labels {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
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

	ds := make(series.Dataset, len(labels))
	for i, label := range labels {
		if scale != 1 {
			floats.Scale(scale, columns[i])
		}
		ds[i] = series.Channel{
			Name:    label,
			Samples: columns[i],
			Time:    timeVec,
			Meta:    series.NewMeta(start, rate),
		}
	}
	return ds, nil
}

// readIBI reads the inter-beat interval file: start timestamp on line 1,
// then time-offset/interval pairs. Intervals are stored in seconds on
// disk and exported in milliseconds; the series is irregular so the
// sampling rate is zero.
func readIBI(fname, label string) (series.Dataset, error) {
	lines, err := readLines(fname)
	if err != nil {
		return nil, err
	}
	if len(lines) < 1 {
		return nil, fmt.Errorf("%s: missing header", fname)
	}

	start, err := parseUnixStart(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	rows := lines[1:]
	timeVec := make([]float64, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, line := range rows {
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s: malformed IBI row %q", fname, line)
		}
		at, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: parse time: %w", fname, err)
		}
		ibi, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: parse interval: %w", fname, err)
		}
		timeVec = append(timeVec, at)
		values = append(values, ibi*1000)
	}

	return series.Dataset{{
		Name:    label,
		Samples: values,
		Time:    timeVec,
		Meta:    series.NewMeta(start, 0),
	}}, nil
}

func readLines(fname string) ([]string, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// parseUnixStart parses the first CSV field of the header line as a UNIX
// timestamp with optional fractional seconds.
func parseUnixStart(line string) (time.Time, error) {
	field := strings.TrimSpace(strings.Split(line, ",")[0])
	ts, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start timestamp %q: %w", field, err)
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}
