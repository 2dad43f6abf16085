package testutil_test

import (
	"os"
	"testing"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleCSV(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		data, err := os.ReadFile(testutil.SampleCSV(t))
		require.NoError(t, err)
		assert.Equal(t, "X,Y,Z\n1,2,3\n4,5,6\n7,8,9\n", string(data))
	})

	t.Run("options", func(t *testing.T) {
		path := testutil.SampleCSV(t, testutil.WithRowCount(1), testutil.WithSeparator(";"), testutil.WithName("data.txt"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "X;Y;Z\n1;2;3\n", string(data))
		assert.Contains(t, path, "data.txt")
	})
}

func TestAssertions(t *testing.T) {
	ds := dataset.FromArgs(map[string]any{"A": 1, "B": "x"})

	testutil.AssertDataset(t, ds, 1, []string{"A", "B"}, "C")
	testutil.AssertColumn(t, ds, "B", "x")
}
