// Package shimmer reads delimited-text exports from a Shimmer sensing
// device. The file declares its own separator on the first line; column
// labels carry a device-id prefix and calibration suffixes that are
// normalized away.
package shimmer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sigvault/internal/series"
)

// maxColumns caps how many columns are read: timestamp plus nine signal
// channels, matching what the device firmware exports.
const maxColumns = 10

// labelSuffixes are calibration markers appended to column names by the
// export tool; they carry no channel identity.
var labelSuffixes = []string{"_CAL", "_LN", "_A13"}

// ReadFile reads one Shimmer export. The first column holds UNIX
// timestamps in milliseconds; the remaining columns become channels
// sharing one relative time axis.
func ReadFile(fname string) (series.Dataset, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 5 {
		return nil, fmt.Errorf("%s: too short for a shimmer export", fname)
	}

	sep, err := parseSeparator(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	labels := normalizeLabels(splitFields(lines[1], sep))
	if len(labels) < 2 {
		return nil, fmt.Errorf("%s: header declares no channels", fname)
	}
	if len(labels) > maxColumns {
		labels = labels[:maxColumns]
	}
	// lines[2] holds units; not exported.

	rows := lines[3:]
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: need at least two samples to derive a rate", fname)
	}

	columns := make([][]float64, len(labels))
	for i := range columns {
		columns[i] = make([]float64, 0, len(rows))
	}
	for _, line := range rows {
		fields := splitFields(line, sep)
		if len(fields) < len(labels) {
			return nil, fmt.Errorf("%s: row has %d fields, want %d", fname, len(fields), len(labels))
		}
		for i := range labels {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: parse sample: %w", fname, err)
			}
			columns[i] = append(columns[i], v)
		}
	}

	// Milliseconds to seconds, then a relative time axis.
	stamps := columns[0]
	for i := range stamps {
		stamps[i] /= 1000.0
	}
	timeVec := make([]float64, len(stamps))
	for i := range timeVec {
		timeVec[i] = stamps[i] - stamps[0]
	}
	if timeVec[1] == 0 {
		return nil, fmt.Errorf("%s: duplicate leading timestamps", fname)
	}
	rate := 1.0 / timeVec[1]

	sec := int64(stamps[0])
	nsec := int64((stamps[0] - float64(sec)) * 1e9)
	meta := series.NewMeta(time.Unix(sec, nsec).UTC(), rate)

	ds := make(series.Dataset, len(labels)-1)
	for i, label := range labels[1:] {
		ds[i] = series.Channel{
			Name:    label,
			Samples: columns[i+1],
			Time:    timeVec,
			Meta:    meta,
		}
	}
	return ds, nil
}

// parseSeparator reads the sep=X declaration on the first line.
func parseSeparator(line string) (string, error) {
	_, after, found := strings.Cut(line, "=")
	if !found {
		return "", fmt.Errorf("missing separator declaration %q", line)
	}
	// Quotes come off but the separator itself may be whitespace (tab).
	sep := strings.Trim(after, `"`)
	if sep == "" {
		return "", fmt.Errorf("empty separator declaration %q", line)
	}
	return sep, nil
}

func splitFields(line, sep string) []string {
	fields := strings.Split(line, sep)
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, strings.TrimSpace(f))
		}
	}
	return out
}

// normalizeLabels strips the device-id prefix (the first two
// underscore-joined tokens of the first label) and the calibration
// suffixes from every label.
func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return labels
	}
	tokens := strings.Split(labels[0], "_")
	prefix := ""
	if len(tokens) >= 2 {
		prefix = tokens[0] + "_" + tokens[1] + "_"
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		l = strings.TrimPrefix(l, prefix)
		for _, suf := range labelSuffixes {
			l = strings.ReplaceAll(l, suf, "")
		}
		out[i] = l
	}
	return out
}
