// Package edf reads European Data Format (EDF/EDF+) recordings into the
// canonical channel model. Samples are stored on disk as little-endian
// int16 in per-record signal blocks and are scaled to physical units
// using the per-signal calibration in the header.
package edf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sigvault/internal/series"
)

// EDF header geometry: a fixed 256-byte preamble followed by one
// 256-byte block of fixed-width ASCII fields per signal.
const (
	preambleSize   = 256
	perSignalBytes = 256
	startLayout    = "02.01.06 15.04.05"
)

// Signal describes one recorded signal as declared in the header.
type Signal struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefiltering      string
	SamplesPerRecord  int
}

// Header is the parsed EDF file header.
type Header struct {
	Version        string
	PatientID      string
	RecordingID    string
	Start          time.Time
	DataRecords    int
	RecordDuration float64 // seconds
	Signals        []Signal
}

// ReadFile reads every signal in the EDF file into one channel each, with
// a time vector derived from the signal's sampling rate and metadata
// carrying the recording start time, rate and physical dimension.
func ReadFile(fname string) (series.Dataset, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}

	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}

	headerBytes := preambleSize + perSignalBytes*len(hdr.Signals)
	data := raw[headerBytes:]

	recordSamples := 0
	for _, sig := range hdr.Signals {
		recordSamples += sig.SamplesPerRecord
	}
	if want := hdr.DataRecords * recordSamples * 2; len(data) < want {
		return nil, fmt.Errorf("%s: data section holds %d bytes, header declares %d", fname, len(data), want)
	}

	ds := make(series.Dataset, len(hdr.Signals))
	for i, sig := range hdr.Signals {
		samples, err := readSignal(data, hdr, i)
		if err != nil {
			return nil, fmt.Errorf("%s: signal %q: %w", fname, sig.Label, err)
		}

		rate := float64(sig.SamplesPerRecord) / hdr.RecordDuration
		timeVec := make([]float64, len(samples))
		for j := range timeVec {
			timeVec[j] = float64(j) / rate
		}

		meta := series.NewMeta(hdr.Start, rate)
		meta["physical_dimension"] = series.StringValue(sig.PhysicalDimension)
		if sig.TransducerType != "" {
			meta["transducer"] = series.StringValue(sig.TransducerType)
		}
		ds[i] = series.Channel{Name: sig.Label, Samples: samples, Time: timeVec, Meta: meta}
	}
	return ds, nil
}

// ReadFaros reads an EDF recording made with a Mega Faros device. Faros
// writes accelerometer channels in milli-g; they are rescaled to g so all
// acceleration channels in a container share one unit.
func ReadFaros(fname string) (series.Dataset, error) {
	ds, err := ReadFile(fname)
	if err != nil {
		return nil, err
	}
	for i := range ds {
		if strings.HasPrefix(ds[i].Name, "Accelerometer") {
			floats.Scale(1.0/1000.0, ds[i].Samples)
		}
	}
	return ds, nil
}

func parseHeader(raw []byte) (*Header, error) {
	if len(raw) < preambleSize {
		return nil, fmt.Errorf("file shorter than EDF preamble")
	}
	field := func(off, n int) string {
		return strings.TrimSpace(string(raw[off : off+n]))
	}

	nSignals, err := strconv.Atoi(field(252, 4))
	if err != nil || nSignals <= 0 {
		return nil, fmt.Errorf("invalid signal count %q", field(252, 4))
	}
	if len(raw) < preambleSize+perSignalBytes*nSignals {
		return nil, fmt.Errorf("file shorter than declared header")
	}

	start, err := time.Parse(startLayout, field(168, 8)+" "+field(176, 8))
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	nRecords, err := strconv.Atoi(field(236, 8))
	if err != nil {
		return nil, fmt.Errorf("parse record count: %w", err)
	}
	duration, err := strconv.ParseFloat(field(244, 8), 64)
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("invalid record duration %q", field(244, 8))
	}

	hdr := &Header{
		Version:        field(0, 8),
		PatientID:      field(8, 80),
		RecordingID:    field(88, 80),
		Start:          start,
		DataRecords:    nRecords,
		RecordDuration: duration,
		Signals:        make([]Signal, nSignals),
	}

	// Per-signal fields are stored as parallel arrays, one field for all
	// signals before the next field begins.
	off := preambleSize
	sigField := func(width, i int) string {
		return strings.TrimSpace(string(raw[off+width*i : off+width*(i+1)]))
	}
	for i := range hdr.Signals {
		hdr.Signals[i].Label = sigField(16, i)
	}
	off += 16 * nSignals
	for i := range hdr.Signals {
		hdr.Signals[i].TransducerType = sigField(80, i)
	}
	off += 80 * nSignals
	for i := range hdr.Signals {
		hdr.Signals[i].PhysicalDimension = sigField(8, i)
	}
	off += 8 * nSignals
	for i := range hdr.Signals {
		v, err := strconv.ParseFloat(sigField(8, i), 64)
		if err != nil {
			return nil, fmt.Errorf("signal %d: parse physical min: %w", i, err)
		}
		hdr.Signals[i].PhysicalMin = v
	}
	off += 8 * nSignals
	for i := range hdr.Signals {
		v, err := strconv.ParseFloat(sigField(8, i), 64)
		if err != nil {
			return nil, fmt.Errorf("signal %d: parse physical max: %w", i, err)
		}
		hdr.Signals[i].PhysicalMax = v
	}
	off += 8 * nSignals
	for i := range hdr.Signals {
		v, err := strconv.Atoi(sigField(8, i))
		if err != nil {
			return nil, fmt.Errorf("signal %d: parse digital min: %w", i, err)
		}
		hdr.Signals[i].DigitalMin = v
	}
	off += 8 * nSignals
	for i := range hdr.Signals {
		v, err := strconv.Atoi(sigField(8, i))
		if err != nil {
			return nil, fmt.Errorf("signal %d: parse digital max: %w", i, err)
		}
		hdr.Signals[i].DigitalMax = v
	}
	off += 8 * nSignals
	for i := range hdr.Signals {
		hdr.Signals[i].Prefiltering = sigField(80, i)
	}
	off += 80 * nSignals
	for i := range hdr.Signals {
		v, err := strconv.Atoi(sigField(8, i))
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("signal %d: invalid samples per record %q", i, sigField(8, i))
		}
		hdr.Signals[i].SamplesPerRecord = v
	}

	for i, sig := range hdr.Signals {
		if sig.DigitalMax == sig.DigitalMin {
			return nil, fmt.Errorf("signal %d (%s): zero digital range", i, sig.Label)
		}
	}
	return hdr, nil
}

// readSignal collects signal idx across all data records and scales it to
// physical units.
func readSignal(data []byte, hdr *Header, idx int) ([]float64, error) {
	sig := hdr.Signals[idx]
	gain := (sig.PhysicalMax - sig.PhysicalMin) / float64(sig.DigitalMax-sig.DigitalMin)

	recordSamples := 0
	sigOffset := 0
	for i, s := range hdr.Signals {
		if i < idx {
			sigOffset += s.SamplesPerRecord
		}
		recordSamples += s.SamplesPerRecord
	}

	out := make([]float64, 0, hdr.DataRecords*sig.SamplesPerRecord)
	for rec := 0; rec < hdr.DataRecords; rec++ {
		base := (rec*recordSamples + sigOffset) * 2
		for s := 0; s < sig.SamplesPerRecord; s++ {
			dig := int16(uint16(data[base+2*s]) | uint16(data[base+2*s+1])<<8)
			out = append(out, (float64(dig)-float64(sig.DigitalMin))*gain+sig.PhysicalMin)
		}
	}
	return out, nil
}
