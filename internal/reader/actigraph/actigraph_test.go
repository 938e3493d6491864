package actigraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sigvault/internal/series"
)

const rawHeader = `------------ Data File Created By ActiGraph Export ------------
Serial Number: XYZ123
Start Time 12:30:45
Start Date 04.03.2016
Epoch Period (hh:mm:ss) 00:00:00
Download Time 09:00:00
Download Date 05.03.2016
Current Memory Address: 0
Current Battery Voltage: 4.1
--------------------------------------------------
Accelerometer X,Accelerometer Y,Accelerometer Z`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "actigraph.csv")
	require.NoError(t, os.WriteFile(fname, []byte(content), 0o644))
	return fname
}

func TestReadFileRaw(t *testing.T) {
	fname := writeFixture(t, rawHeader+"\n0.5,-0.25,1.0\n0.6,-0.35,1.1\n")

	ds, err := ReadFile(fname)
	require.NoError(t, err)
	require.Len(t, ds, 3)

	names, err := ds.Channels()
	require.NoError(t, err)
	// Labels are lowercased with spaces turned into underscores.
	require.Equal(t, []string{"accelerometer_x", "accelerometer_y", "accelerometer_z"}, names)

	if diff := cmp.Diff([]float64{0.5, 0.6}, ds[0].Samples); diff != "" {
		t.Errorf("x samples mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 1.0 / 50}, ds[0].Time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 50.0, ds[0].Meta[series.MetaSamplingRate].Float())
	_, start := ds[0].Meta[series.MetaTimeStart].Storage()
	require.Equal(t, "20160304T123045", start)
	_, stop := ds[0].Meta["time_stop"].Storage()
	require.Equal(t, "20160304T123045", stop)
}

func TestReadFileIMU(t *testing.T) {
	labels := "Timestamp,Accelerometer X,Accelerometer Y,Accelerometer Z,Temperature,Gyroscope X,Gyroscope Y,Gyroscope Z,Magnetometer X,Magnetometer Y,Magnetometer Z"
	header := rawHeader[:len(rawHeader)-len("Accelerometer X,Accelerometer Y,Accelerometer Z")] + labels
	fname := writeFixture(t, header+"\n9,0.5,-0.25,1.0,36.5,1,2,3,4,5,6\n10,0.6,-0.35,1.1,36.6,1,2,3,4,5,6\n")

	ds, err := ReadFile(fname)
	require.NoError(t, err)
	require.Len(t, ds, 10)

	// The leading timestamp column is dropped.
	require.Equal(t, "accelerometer_x", ds[0].Name)
	if diff := cmp.Diff([]float64{0.5, 0.6}, ds[0].Samples); diff != "" {
		t.Errorf("x samples mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "temperature", ds[3].Name)
	if diff := cmp.Diff([]float64{0, 1.0 / 100}, ds[0].Time); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 100.0, ds[0].Meta[series.MetaSamplingRate].Float())
}

func TestReadFileRejectsUnknownColumnCount(t *testing.T) {
	header := rawHeader[:len(rawHeader)-len("Accelerometer X,Accelerometer Y,Accelerometer Z")] + "A,B"
	fname := writeFixture(t, header+"\n1,2\n")

	_, err := ReadFile(fname)
	require.Error(t, err)
}

func TestReadFileHeaderOnly(t *testing.T) {
	fname := writeFixture(t, rawHeader+"\n")

	_, err := ReadFile(fname)
	require.Error(t, err)
}
