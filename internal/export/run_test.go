package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sigvault/internal/container"
	"github.com/banshee-data/sigvault/internal/neurone"
	"github.com/banshee-data/sigvault/internal/series"
)

// writeE4Folder lays out a minimal Empatica recording: one EDA file and
// one IBI file.
func writeE4Folder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	eda := "1457094645.000000\n4.00\n0.5\n0.6\n0.7\n0.8\n"
	ibi := "1457094645.000000\n0.5,0.8\n1.3,0.75\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EDA.csv"), []byte(eda), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IBI.csv"), []byte(ibi), 0o644))
	return dir
}

// writeNeurOneMeasurement lays out a measurement directory with an empty
// signal matrix and one encoded event.
func writeNeurOneMeasurement(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	const protocolXML = `<?xml version="1.0"?>
<DataSetProtocol xmlns="http://www.megaemg.com/DataSetGeneralProtocol.xsd">
  <TableProtocol><ActualSamplingFrequency>100</ActualSamplingFrequency></TableProtocol>
  <TableInput><PhysicalInputNumber>1</PhysicalInputNumber><Name>EEG1</Name></TableInput>
</DataSetProtocol>`
	const sessionXML = `<?xml version="1.0"?>
<DataSetSession xmlns="http://www.megaemg.com/DataSetGeneralSession.xsd">
  <TableSession>
    <StartDateTime>2016-03-04T12:30:45.000000+02:00</StartDateTime>
    <StopDateTime>2016-03-04T13:30:45.000000+02:00</StopDateTime>
  </TableSession>
</DataSetSession>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Protocol.xml"), []byte(protocolXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Session.xml"), []byte(sessionXML), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1", "1.bin"), nil, 0o644))

	ev := neurone.Event{Type: 1, Code: 7, StartSampleIndex: 200, StopSampleIndex: 300}
	require.NoError(t, neurone.WriteEventsFile(filepath.Join(dir, "1", "events.bin"), []neurone.Event{ev}))
	return dir
}

func TestRunEndToEnd(t *testing.T) {
	e4 := writeE4Folder(t)
	meas := writeNeurOneMeasurement(t)
	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("subject wore the band on the left wrist\n"), 0o644))

	out := filepath.Join(t.TempDir(), "out.svc")
	job := &Job{
		Output: Output{Filename: out},
		Datasets: []SourceSpec{
			{
				DataType: "empatica",
				Filename: e4,
				Maps: []Mapping{
					{
						Path:        "wrist/eda",
						Channels:    []string{"EDA"},
						SharedGroup: true,
						Meta: []MetaGroupSpec{{
							Channels: []string{"*"},
							Info:     map[string]any{"site": "lab1", "gain": 2.5},
						}},
					},
					{Path: "wrist/ibi", Channels: []string{"IBI"}, SharedGroup: false},
				},
			},
			{
				DataType: "neurone_events",
				Filename: meas,
				Maps: []Mapping{{
					Path: "eeg/events",
					Meta: []MetaGroupSpec{{Info: map[string]any{"device": "neurone"}}},
				}},
			},
			{
				DataType: "text",
				Filename: notes,
				Maps:     []Mapping{{Path: "notes"}},
			},
		},
	}
	require.NoError(t, job.Validate())
	require.NoError(t, Run(job))

	c, err := container.Open(out)
	require.NoError(t, err)
	defer c.Close()

	// Shared group: sibling channel leaf plus one time leaf.
	eda, err := c.FloatLeaf("wrist/eda/EDA")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0.5, 0.6, 0.7, 0.8}, eda); diff != "" {
		t.Errorf("EDA samples mismatch (-want +got):\n%s", diff)
	}
	tv, err := c.FloatLeaf("wrist/eda/time")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0, 0.25, 0.5, 0.75}, tv); diff != "" {
		t.Errorf("EDA time mismatch (-want +got):\n%s", diff)
	}

	// Job metadata lands as attributes on the channel path.
	kind, site, err := c.Attribute("wrist/eda/EDA", "site")
	require.NoError(t, err)
	require.Equal(t, "string", kind)
	require.Equal(t, "lab1", site)
	kind, _, err = c.Attribute("wrist/eda/EDA", "gain")
	require.NoError(t, err)
	require.Equal(t, "float", kind)

	// Non-shared group: private data/time pair per channel.
	ibi, err := c.FloatLeaf("wrist/ibi/IBI/data")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{800, 750}, ibi); diff != "" {
		t.Errorf("IBI samples mismatch (-want +got):\n%s", diff)
	}
	_, err = c.FloatLeaf("wrist/ibi/IBI/time")
	require.NoError(t, err)

	// Event table leaf with path-level metadata.
	_, rows, n, err := c.TableLeaf("eeg/events")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, rows, neurone.EventRecordSize)
	kind, device, err := c.Attribute("eeg/events", "device")
	require.NoError(t, err)
	require.Equal(t, "string", kind)
	require.Equal(t, "neurone", device)

	// Text blob.
	text, err := c.TextLeaf("notes")
	require.NoError(t, err)
	require.Contains(t, text, "left wrist")
}

func TestRunSourceReadErrorCarriesFilename(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.svc")
	job := &Job{
		Output: Output{Filename: out},
		Datasets: []SourceSpec{{
			DataType: "empatica",
			Filename: filepath.Join(t.TempDir(), "empty"),
			Maps:     []Mapping{{Path: "wrist", Channels: []string{"*"}}},
		}},
	}

	err := Run(job)
	require.Error(t, err)
	var srcErr *SourceReadError
	require.ErrorAs(t, err, &srcErr)
	require.Equal(t, job.Datasets[0].Filename, srcErr.File)
}

func TestRunExpandsWildcardInPlace(t *testing.T) {
	e4 := writeE4Folder(t)
	out := filepath.Join(t.TempDir(), "out.svc")
	job := &Job{
		Output: Output{Filename: out},
		Datasets: []SourceSpec{{
			DataType: "empatica",
			Filename: e4,
			Maps:     []Mapping{{Path: "wrist", Channels: []string{"*"}, SharedGroup: false}},
		}},
	}

	require.NoError(t, Run(job))
	// Folder globbing is alphabetical: EDA before IBI.
	require.Equal(t, []string{"EDA", "IBI"}, job.Datasets[0].Maps[0].Channels)
}

func TestWriteSignalMapsSkipsMissingTimeAxis(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.svc")
	c, err := container.Create(out)
	require.NoError(t, err)
	defer c.Close()

	// A defective source with no time axis must not sink the job.
	ds := series.Dataset{{Name: "x", Samples: []float64{1, 2}, Meta: series.NewMeta(time.Time{}, 0)}}
	src := &SourceSpec{
		DataType: "edf",
		Filename: "broken.edf",
		Maps:     []Mapping{{Path: "broken", Channels: []string{"*"}}},
	}
	require.NoError(t, writeSignalMaps(c, src, ds))

	ok, err := c.HasGroup("broken")
	require.NoError(t, err)
	require.False(t, ok)
}
