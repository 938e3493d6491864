// Package series holds the canonical channel model shared by every device
// reader and the container writer. A reader turns one recording into a
// Dataset: an ordered list of named channels, each carrying its own time
// axis and metadata. The container writer consumes Datasets without caring
// which device produced them.
package series

import (
	"errors"
	"strconv"
	"time"
)

const (
	// TimeAxisName is the implicit time axis. It is never a selectable
	// channel and is removed from every resolved channel set.
	TimeAxisName = "time"

	// Wildcard is the single-element channel selector meaning "all
	// channels present in the dataset".
	Wildcard = "*"

	// TimestampLayout is the fixed serialization for absolute timestamps
	// stored as container attributes. Container readers in any environment
	// can parse it without a temporal library.
	TimestampLayout = "20060102T150405"
)

// Well-known metadata keys present on every channel.
const (
	MetaTimeStart    = "time_start"
	MetaSamplingRate = "sampling_rate"
)

// ValueKind enumerates the scalar types a metadata value can carry.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindTimestamp
)

// Value is a tagged metadata scalar. Keeping timestamps as their own kind
// pins the attribute formatting rule to the type instead of leaving it to
// runtime type inspection in the writer.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	t    time.Time
}

func IntValue(v int64) Value      { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value  { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value  { return Value{kind: KindString, s: v} }
func TimeValue(v time.Time) Value { return Value{kind: KindTimestamp, t: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Int() int64      { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) String() string  { return v.s }
func (v Value) Time() time.Time { return v.t }

// Storage returns the attribute kind tag and the textual form stored in
// the container. Timestamps always serialize through TimestampLayout.
func (v Value) Storage() (kind, text string) {
	switch v.kind {
	case KindInt:
		return "int", strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "float", strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTimestamp:
		return "timestamp", v.t.Format(TimestampLayout)
	default:
		return "string", v.s
	}
}

// Meta maps metadata keys to scalar values. Every reader populates at
// least MetaTimeStart and MetaSamplingRate.
type Meta map[string]Value

// NewMeta builds the baseline metadata for a channel. A zero start time
// stores the empty-string sentinel: some formats simply do not record an
// absolute start.
func NewMeta(start time.Time, samplingRate float64) Meta {
	m := Meta{MetaSamplingRate: FloatValue(samplingRate)}
	if start.IsZero() {
		m[MetaTimeStart] = StringValue("")
	} else {
		m[MetaTimeStart] = TimeValue(start)
	}
	return m
}

// Channel is one named time series plus its private time axis and
// metadata. len(Samples) == len(Time) is required for a well-formed
// channel but is not enforced here: a defective reader may produce a
// mismatch, and the container writer fails loudly rather than truncate.
type Channel struct {
	Name    string
	Samples []float64
	Time    []float64
	Meta    Meta
}

// Dataset is an ordered collection of channels produced by one source
// read. Channel names are unique within a dataset; the same name may
// appear in other datasets destined for other container paths.
type Dataset []Channel

// ErrMissingTimeAxis reports a dataset in which no channel carries a time
// axis. It is the one recoverable condition in the pipeline: the names
// returned alongside it are still valid and callers may proceed with a
// warning.
var ErrMissingTimeAxis = errors.New("dataset has no time axis")

// Channels returns the data channel names in first-seen order. The
// implicit time axis is never part of the result. If no channel in the
// dataset carries a time axis at all, the names are returned together
// with ErrMissingTimeAxis.
func (d Dataset) Channels() ([]string, error) {
	names := make([]string, 0, len(d))
	seen := make(map[string]bool, len(d))
	hasTime := false
	for _, ch := range d {
		if ch.Time != nil {
			hasTime = true
		}
		if ch.Name == TimeAxisName {
			continue
		}
		if !seen[ch.Name] {
			seen[ch.Name] = true
			names = append(names, ch.Name)
		}
	}
	if !hasTime {
		return names, ErrMissingTimeAxis
	}
	return names, nil
}

// ExpandWildcard resolves the wildcard selector against ds. Explicit
// selectors pass through unchanged, so applying the expansion to an
// already-expanded list is a no-op.
func ExpandWildcard(selector []string, ds Dataset) ([]string, error) {
	if len(selector) == 1 && selector[0] == Wildcard {
		return ds.Channels()
	}
	return selector, nil
}
