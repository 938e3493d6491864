package neurone

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/sigvault/internal/series"
)

// sessionPhase is the recording phase read from the measurement
// directory. Only phase 1 is supported.
const sessionPhase = "1"

// bytesPerSample is the raw sample width: signed little-endian int32.
const bytesPerSample = 4

// ReadSignals reads the raw signal matrix of a NeurOne measurement
// directory into one channel per input, each with a time vector derived
// from the sampling rate.
func ReadSignals(dir string) (series.Dataset, error) {
	proto, err := ReadProtocol(dir)
	if err != nil {
		return nil, err
	}
	if proto.SamplingRate <= 0 {
		return nil, fmt.Errorf("protocol has no sampling rate")
	}

	fname := filepath.Join(dir, sessionPhase, sessionPhase+".bin")
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("read signal data: %w", err)
	}

	nChannels := len(proto.Channels)
	nSamples := len(raw) / bytesPerSample / nChannels

	timeVec := make([]float64, nSamples)
	for i := range timeVec {
		timeVec[i] = float64(i) / proto.SamplingRate
	}

	le := binary.LittleEndian
	ds := make(series.Dataset, nChannels)
	for c, name := range proto.Channels {
		samples := make([]float64, nSamples)
		for s := 0; s < nSamples; s++ {
			// Samples are interleaved: one int32 per channel per tick.
			off := (s*nChannels + c) * bytesPerSample
			samples[s] = float64(int32(le.Uint32(raw[off : off+bytesPerSample])))
		}
		meta := series.NewMeta(proto.TimeStart, proto.SamplingRate)
		meta["time_stop"] = series.TimeValue(proto.TimeStop)
		ds[c] = series.Channel{
			Name:    name,
			Samples: samples,
			Time:    timeVec,
			Meta:    meta,
		}
	}
	return ds, nil
}

// ReadEvents decodes the binary event log of a measurement directory,
// deriving event times from the protocol's sampling rate.
func ReadEvents(dir string) (*EventTable, error) {
	proto, err := ReadProtocol(dir)
	if err != nil {
		return nil, err
	}

	fname := filepath.Join(dir, sessionPhase, "events.bin")
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("read event data: %w", err)
	}
	return DecodeEvents(raw, proto.SamplingRate)
}
