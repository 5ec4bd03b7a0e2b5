package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSV_BOMAndBlankLines(t *testing.T) {
	in := "\ufeffUnique ID,Project Name\nA,Solar \"Farm\"\n\n,\nB,Wind\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Unique ID", "Project Name"}, tbl.Header)
	assert.Equal(t, [][]string{{"A", `Solar "Farm"`}, {"B", "Wind"}}, tbl.Rows)
}

func TestReadCSV_RaggedRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"1", "2", "3", "4"}}, tbl.Rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadTable_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wh.csv")
	require.NoError(t, os.WriteFile(path, []byte("Unique ID\nX\n"), 0o644))
	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"X"}}, tbl.Rows)

	_, err = ReadTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadTable_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Projects")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"", ""},
		{"Project Name", "State"},
		{"Dam Repair", "CO"},
		{"", ""},
		{"Canal Lining", "AZ"},
	} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "usbr.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Project Name", "State"}, tbl.Header)
	assert.Equal(t, [][]string{{"Dam Repair", "CO"}, {"Canal Lining", "AZ"}}, tbl.Rows)
}

func TestBatch_Commit(t *testing.T) {
	dir := t.TempDir()
	var b Batch
	b.Add(Output{Path: filepath.Join(dir, "out.csv"), Header: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}}})
	b.Add(Output{Path: filepath.Join(dir, "nested", "review.csv"), Header: []string{"a"}})
	require.NoError(t, b.Commit())

	got, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(got))

	got, err = os.ReadFile(filepath.Join(dir, "nested", "review.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
	assert.Equal(t, []string{filepath.Join(dir, "out.csv"), filepath.Join(dir, "nested", "review.csv")}, b.Paths())
}

func TestBatch_RawData(t *testing.T) {
	dir := t.TempDir()
	var b Batch
	b.Add(Output{Path: filepath.Join(dir, "summary.yaml"), Data: []byte("totals:\n  new: 2\n")})
	require.NoError(t, b.Commit())

	got, err := os.ReadFile(filepath.Join(dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "totals:\n  new: 2\n", string(got))
}

func TestBatch_AllOrNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("old\n"), 0o644))

	// A regular file where a directory is needed makes the second output fail.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var b Batch
	b.Add(Output{Path: good, Header: []string{"new"}})
	b.Add(Output{Path: filepath.Join(blocker, "bad.csv"), Header: []string{"x"}})
	require.Error(t, b.Commit())

	got, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")
}
