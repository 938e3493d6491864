package shimmer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sigvault/internal/series"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "shimmer.csv")
	require.NoError(t, os.WriteFile(fname, []byte(content), 0o644))
	return fname
}

func TestReadFile(t *testing.T) {
	fname := writeFixture(t, `"sep=	"
Shimmer_9A2B_Timestamp_Unix_CAL	Shimmer_9A2B_Accel_LN_X_CAL	Shimmer_9A2B_Accel_LN_Y_CAL
ms	m/(s^2)	m/(s^2)
1457094645000	0.5	-0.25
1457094645020	0.6	-0.35
1457094645040	0.7	-0.45
`)

	ds, err := ReadFile(fname)
	require.NoError(t, err)
	require.Len(t, ds, 2)

	names, err := ds.Channels()
	require.NoError(t, err)
	// Device prefix and calibration suffixes are stripped.
	require.Equal(t, []string{"Accel_X", "Accel_Y"}, names)

	if diff := cmp.Diff([]float64{0.5, 0.6, 0.7}, ds[0].Samples); diff != "" {
		t.Errorf("accel x samples mismatch (-want +got):\n%s", diff)
	}

	// Relative time axis in seconds from the first stamp. Millisecond
	// stamps near 1.4e9 leave only sub-microsecond float precision.
	require.InDelta(t, 0.0, ds[0].Time[0], 1e-6)
	require.InDelta(t, 0.02, ds[0].Time[1], 1e-6)
	require.InDelta(t, 0.04, ds[0].Time[2], 1e-6)

	require.InDelta(t, 50.0, ds[0].Meta[series.MetaSamplingRate].Float(), 1e-2)
	_, start := ds[0].Meta[series.MetaTimeStart].Storage()
	require.Equal(t, "20160304T123045", start)
}

func TestReadFileCommaSeparator(t *testing.T) {
	fname := writeFixture(t, `sep=,
Dev_01_Timestamp_CAL,Dev_01_GSR_CAL
ms,kohm
1457094645000,100
1457094645500,110
`)

	ds, err := ReadFile(fname)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	require.Equal(t, "GSR", ds[0].Name)
	require.InDelta(t, 2.0, ds[0].Meta[series.MetaSamplingRate].Float(), 1e-9)
}

func TestReadFileTooShort(t *testing.T) {
	fname := writeFixture(t, `sep=,
Dev_01_Timestamp_CAL,Dev_01_GSR_CAL
ms,kohm
1457094645000,100
`)

	_, err := ReadFile(fname)
	require.Error(t, err)
}
