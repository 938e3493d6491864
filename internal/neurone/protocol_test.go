package neurone

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const protocolFixture = `<?xml version="1.0"?>
<DataSetProtocol xmlns="http://www.megaemg.com/DataSetGeneralProtocol.xsd">
  <TableProtocol>
    <ActualSamplingFrequency>500</ActualSamplingFrequency>
  </TableProtocol>
  <TableInput>
    <PhysicalInputNumber>2</PhysicalInputNumber>
    <Name>EMG2</Name>
  </TableInput>
  <TableInput>
    <PhysicalInputNumber>1</PhysicalInputNumber>
    <Name>EMG1</Name>
  </TableInput>
</DataSetProtocol>`

const sessionFixture = `<?xml version="1.0"?>
<DataSetSession xmlns="http://www.megaemg.com/DataSetGeneralSession.xsd">
  <TableSession>
    <StartDateTime>2016-03-04T12:30:45.500000+02:00</StartDateTime>
    <StopDateTime>2016-03-04T13:30:45.500000+02:00</StopDateTime>
  </TableSession>
</DataSetSession>`

// writeMeasurement lays out a minimal NeurOne measurement directory with
// the given interleaved int32 samples and raw event stream.
func writeMeasurement(t *testing.T, samples []int32, events []byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Protocol.xml"), []byte(protocolFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Session.xml"), []byte(sessionFixture), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1"), 0o755))

	raw := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1", "1.bin"), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1", "events.bin"), events, 0o644))
	return dir
}

func TestReadProtocol(t *testing.T) {
	dir := writeMeasurement(t, nil, nil)

	proto, err := ReadProtocol(dir)
	require.NoError(t, err)

	// Channels follow physical input order, not document order.
	if diff := cmp.Diff([]string{"EMG1", "EMG2"}, proto.Channels); diff != "" {
		t.Errorf("channel order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 500.0, proto.SamplingRate)
	require.Equal(t, 2016, proto.TimeStart.Year())
	require.Equal(t, 45, proto.TimeStart.Second())
	require.Equal(t, 13, proto.TimeStop.Hour())
}

func TestReadSignals(t *testing.T) {
	// Three ticks of two interleaved channels.
	dir := writeMeasurement(t, []int32{10, -20, 11, -21, 12, -22}, nil)

	ds, err := ReadSignals(dir)
	require.NoError(t, err)
	require.Len(t, ds, 2)

	require.Equal(t, "EMG1", ds[0].Name)
	if diff := cmp.Diff([]float64{10, 11, 12}, ds[0].Samples); diff != "" {
		t.Errorf("EMG1 samples mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "EMG2", ds[1].Name)
	if diff := cmp.Diff([]float64{-20, -21, -22}, ds[1].Samples); diff != "" {
		t.Errorf("EMG2 samples mismatch (-want +got):\n%s", diff)
	}

	// Time vector is sample index over sampling rate.
	if diff := cmp.Diff([]float64{0, 1.0 / 500, 2.0 / 500}, ds[0].Time); diff != "" {
		t.Errorf("time vector mismatch (-want +got):\n%s", diff)
	}

	names, err := ds.Channels()
	require.NoError(t, err)
	require.Equal(t, []string{"EMG1", "EMG2"}, names)
}

func TestReadEvents(t *testing.T) {
	stream := append(buildRecord(500, 1000, 1, 0), buildRecord(1500, 1500, 2, 0)...)
	dir := writeMeasurement(t, nil, stream)

	table, err := ReadEvents(dir)
	require.NoError(t, err)
	require.Len(t, table.Events, 2)
	require.Equal(t, 500.0, table.SamplingRate)
	require.Equal(t, 1.0, table.Events[0].StartTime)
	require.Equal(t, 2.0, table.Events[0].StopTime)
	require.Equal(t, 3.0, table.Events[1].StartTime)
}
