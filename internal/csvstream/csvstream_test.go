package csvstream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestFile_Each_ParsesAllRows(t *testing.T) {
	path := writeTempCSV(t, "1,2,10\n2,3,20\n3,4,30\n")
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows [][]string
	err = f.Each(func(fields [][]byte) error {
		row := make([]string, len(fields))
		for i, field := range fields {
			row[i] = string(field)
		}
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1", "2", "10"}, {"2", "3", "20"}, {"3", "4", "30"}}, rows)
}

func TestFile_Each_SkipsBlankLines(t *testing.T) {
	path := writeTempCSV(t, "1,2,10\n\n2,3,20\n")
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	var count int
	require.NoError(t, f.Each(func(fields [][]byte) error {
		count++
		return nil
	}))
	require.Equal(t, 2, count)
}

func TestFile_Each_HandlesMissingTrailingNewline(t *testing.T) {
	path := writeTempCSV(t, "1,2,10\n2,3,20")
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	var count int
	require.NoError(t, f.Each(func(fields [][]byte) error {
		count++
		return nil
	}))
	require.Equal(t, 2, count)
}

func TestFile_Each_WrapsRowErrorWithLineNumber(t *testing.T) {
	path := writeTempCSV(t, "1,2,10\n2,3,20\nbad\n4,5,40\n")
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	err = f.Each(func(fields [][]byte) error {
		if len(fields) != 3 {
			return errors.New("expected 3 fields")
		}
		return nil
	})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 3, parseErr.Line)
}

func TestFile_EmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	var count int
	require.NoError(t, f.Each(func(fields [][]byte) error {
		count++
		return nil
	}))
	require.Equal(t, 0, count)
}

func TestFile_CloseIsSafeOnEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	f, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
