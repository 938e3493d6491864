package neurone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// NeurOne event record wire layout (events.bin).
//
// Each record is exactly 88 bytes:
//
//	offset  size  field
//	  0      4    Revision          (int32, little-endian)
//	  4      4    RFU1              (int32)
//	  8      4    Type              (int32)
//	 12      4    SourcePort        (int32)
//	 16      4    ChannelNumber     (int32)
//	 20      4    Code              (int32)
//	 24      8    StartSampleIndex  (uint64, little-endian)
//	 32      8    StopSampleIndex   (uint64)
//	 40      8    DescriptionLength (uint64)
//	 48      8    DescriptionOffset (uint64)
//	 56      8    DataLength        (uint64)
//	 64      8    DataOffset        (uint64)
//	 72     16    RFU2..RFU5        (4 x int32, wire only)
//
// The signedness/width split is not uniform across the record: the six
// leading fields are signed 32-bit, the sample indices and offsets are
// unsigned 64-bit. The trailing reserved fields never carry payload; they
// are dropped on decode and zero-filled on encode.
const EventRecordSize = 88

var (
	// ErrTruncatedRecord reports an event stream whose length is not a
	// multiple of EventRecordSize. Nothing is decoded in that case.
	ErrTruncatedRecord = errors.New("event stream truncated: length not a multiple of record size")

	// ErrMissingSamplingRate reports an attempt to derive event times
	// without a sampling rate. Refusing outright beats producing Inf.
	ErrMissingSamplingRate = errors.New("sampling rate required to derive event times")
)

// RecordDecodeError identifies the 88-byte slot that failed to decode.
// Records decoded before the failing slot remain valid; the caller decides
// whether to keep the partial table or abort.
type RecordDecodeError struct {
	Index int
	Err   error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("event record %d: %v", e.Index, e.Err)
}

func (e *RecordDecodeError) Unwrap() error { return e.Err }

// Event is one decoded event record. StartTime and StopTime are derived
// from the sample indices at decode time and never appear on the wire.
type Event struct {
	Revision          int32
	RFU1              int32
	Type              int32
	SourcePort        int32
	ChannelNumber     int32
	Code              int32
	StartSampleIndex  uint64
	StopSampleIndex   uint64
	DescriptionLength uint64
	DescriptionOffset uint64
	DataLength        uint64
	DataOffset        uint64
	StartTime         float64 // StartSampleIndex / sampling rate, seconds
	StopTime          float64 // StopSampleIndex / sampling rate, seconds
}

// FieldSpec describes one column of the decoded event table.
type FieldSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "int32", "uint64" or "float64"
	Size int    `json:"size"` // byte width in the table leaf
}

// eventSchema is the column layout of a decoded event table: the wire
// fields in order, minus the trailing reserved block, plus the two derived
// time columns.
var eventSchema = []FieldSpec{
	{Name: "Revision", Kind: "int32", Size: 4},
	{Name: "RFU1", Kind: "int32", Size: 4},
	{Name: "Type", Kind: "int32", Size: 4},
	{Name: "SourcePort", Kind: "int32", Size: 4},
	{Name: "ChannelNumber", Kind: "int32", Size: 4},
	{Name: "Code", Kind: "int32", Size: 4},
	{Name: "StartSampleIndex", Kind: "uint64", Size: 8},
	{Name: "StopSampleIndex", Kind: "uint64", Size: 8},
	{Name: "DescriptionLength", Kind: "uint64", Size: 8},
	{Name: "DescriptionOffset", Kind: "uint64", Size: 8},
	{Name: "DataLength", Kind: "uint64", Size: 8},
	{Name: "DataOffset", Kind: "uint64", Size: 8},
	{Name: "StartTime", Kind: "float64", Size: 8},
	{Name: "StopTime", Kind: "float64", Size: 8},
}

// EventTable is a fixed-schema ordered sequence of decoded events from one
// recording, materialized later as a single strongly-typed container leaf.
type EventTable struct {
	Events       []Event
	SamplingRate float64
}

// Schema returns the table's column layout in declared order, including
// the derived time columns.
func (t *EventTable) Schema() []FieldSpec {
	out := make([]FieldSpec, len(eventSchema))
	copy(out, eventSchema)
	return out
}

// DecodeEvents decodes a raw event stream. The stream length must be an
// exact multiple of EventRecordSize and samplingRate must be positive.
// Records are decoded independently: on a per-record failure the table
// holds every record decoded so far and the error is a *RecordDecodeError
// naming the failing slot.
func DecodeEvents(data []byte, samplingRate float64) (*EventTable, error) {
	if samplingRate <= 0 {
		return nil, ErrMissingSamplingRate
	}
	if len(data)%EventRecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedRecord, len(data))
	}

	n := len(data) / EventRecordSize
	table := &EventTable{
		Events:       make([]Event, 0, n),
		SamplingRate: samplingRate,
	}
	for i := 0; i < n; i++ {
		chunk := data[i*EventRecordSize : (i+1)*EventRecordSize]
		ev, err := decodeRecord(chunk)
		if err != nil {
			return table, &RecordDecodeError{Index: i, Err: err}
		}
		ev.StartTime = float64(ev.StartSampleIndex) / samplingRate
		ev.StopTime = float64(ev.StopSampleIndex) / samplingRate
		table.Events = append(table.Events, ev)
	}
	return table, nil
}

func decodeRecord(chunk []byte) (Event, error) {
	if len(chunk) != EventRecordSize {
		return Event{}, fmt.Errorf("short record: %d bytes", len(chunk))
	}
	le := binary.LittleEndian
	ev := Event{
		Revision:          int32(le.Uint32(chunk[0:4])),
		RFU1:              int32(le.Uint32(chunk[4:8])),
		Type:              int32(le.Uint32(chunk[8:12])),
		SourcePort:        int32(le.Uint32(chunk[12:16])),
		ChannelNumber:     int32(le.Uint32(chunk[16:20])),
		Code:              int32(le.Uint32(chunk[20:24])),
		StartSampleIndex:  le.Uint64(chunk[24:32]),
		StopSampleIndex:   le.Uint64(chunk[32:40]),
		DescriptionLength: le.Uint64(chunk[40:48]),
		DescriptionOffset: le.Uint64(chunk[48:56]),
		DataLength:        le.Uint64(chunk[56:64]),
		DataOffset:        le.Uint64(chunk[64:72]),
	}
	// Bytes 72..88 hold RFU2..RFU5 and are intentionally not surfaced.
	return ev, nil
}

// EncodeEvent writes one 88-byte record. The reserved fields are
// zero-filled and the derived time fields never hit the wire, so a
// decode/encode round trip reproduces the original bytes except in the
// reserved block.
func EncodeEvent(w io.Writer, ev Event) error {
	var buf [EventRecordSize]byte
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], uint32(ev.Revision))
	le.PutUint32(buf[4:8], uint32(ev.RFU1))
	le.PutUint32(buf[8:12], uint32(ev.Type))
	le.PutUint32(buf[12:16], uint32(ev.SourcePort))
	le.PutUint32(buf[16:20], uint32(ev.ChannelNumber))
	le.PutUint32(buf[20:24], uint32(ev.Code))
	le.PutUint64(buf[24:32], ev.StartSampleIndex)
	le.PutUint64(buf[32:40], ev.StopSampleIndex)
	le.PutUint64(buf[40:48], ev.DescriptionLength)
	le.PutUint64(buf[48:56], ev.DescriptionOffset)
	le.PutUint64(buf[56:64], ev.DataLength)
	le.PutUint64(buf[64:72], ev.DataOffset)
	_, err := w.Write(buf[:])
	return err
}

// EncodeEvents writes records back to back in table order.
func EncodeEvents(w io.Writer, events []Event) error {
	for i, ev := range events {
		if err := EncodeEvent(w, ev); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

// WriteEventsFile re-emits events to an on-disk stream, overwriting fname.
// Used to write edited event tables back in the device's native format.
func WriteEventsFile(fname string, events []Event) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if err := EncodeEvents(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
