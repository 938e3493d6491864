package empatica

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sigvault/internal/series"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadFolder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "ACC.csv", "1457092245.000000, 1457092245.000000, 1457092245.000000\n32.000000, 32.000000, 32.000000\n64,0,-64\n32,16,-32\n")
	writeFixture(t, dir, "EDA.csv", "1457092245.000000\n4.000000\n0.5\n0.6\n")
	writeFixture(t, dir, "IBI.csv", "1457092245.000000, IBI\n0.5,0.8\n1.3,0.75\n")
	writeFixture(t, dir, "README.csv", "not a sensor file\n")

	ds, err := ReadFolder(dir)
	require.NoError(t, err)

	names, err := ds.Channels()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"acc_x", "acc_y", "acc_z", "EDA", "IBI"}, names)

	byName := map[string]series.Channel{}
	for _, ch := range ds {
		byName[ch.Name] = ch
	}

	// ACC scaled by 1/64.
	if diff := cmp.Diff([]float64{1, 0.5}, byName["acc_x"].Samples); diff != "" {
		t.Errorf("acc_x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-1, -0.5}, byName["acc_z"].Samples); diff != "" {
		t.Errorf("acc_z mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 32.0, byName["acc_x"].Meta[series.MetaSamplingRate].Float())

	// EDA at 4 Hz: quarter-second time steps.
	if diff := cmp.Diff([]float64{0, 0.25}, byName["EDA"].Time); diff != "" {
		t.Errorf("EDA time mismatch (-want +got):\n%s", diff)
	}

	// IBI: explicit time offsets, seconds converted to milliseconds,
	// irregular rate.
	ibi := byName["IBI"]
	if diff := cmp.Diff([]float64{800, 750}, ibi.Samples); diff != "" {
		t.Errorf("IBI samples mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 1.3}, ibi.Time); diff != "" {
		t.Errorf("IBI time mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0.0, ibi.Meta[series.MetaSamplingRate].Float())

	kind, _ := ibi.Meta[series.MetaTimeStart].Storage()
	require.Equal(t, "timestamp", kind)
}

func TestReadFolderEmpty(t *testing.T) {
	_, err := ReadFolder(t.TempDir())
	require.Error(t, err)
}

func TestReadGeneralRejectsBadRate(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "HR.csv", "1457092245.000000\n0\n60\n")

	_, err := ReadFolder(dir)
	require.Error(t, err)
}
