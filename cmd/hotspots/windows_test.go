package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowsCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"windows", "--end", "2024-06", "--history", "6", "--size", "3", "--step", "3", "--format", "json"})
	require.NoError(t, rootCmd.Execute())

	var rows []windowRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01 to 2024-03", rows[0].Label)
	assert.Equal(t, "2024-04 to 2024-06", rows[1].Label)
	assert.Len(t, rows[1].Months, 3)

	buf.Reset()
	rootCmd.SetArgs([]string{"windows", "--end", "2024-06", "--history", "6", "--size", "3", "--step", "0", "--format", "table"})
	assert.Error(t, rootCmd.Execute())
}

func TestRepeatPersistenceFlag(t *testing.T) {
	f := repeatCmd.Flags()
	assert.Equal(t, "0.9", f.Lookup("persistence").DefValue)
	require.NoError(t, f.Parse([]string{"--persistence", "0.7"}))
	assert.Equal(t, 0.7, repeatReq.Persistence)
	require.NoError(t, f.Set("persistence", "0.9"))
}
