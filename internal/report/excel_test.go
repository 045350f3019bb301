package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateCountdownReport(t *testing.T) {
	ends := time.Date(2030, 3, 4, 12, 0, 0, 0, time.UTC)
	data, err := GenerateCountdownReport([]CountdownRow{
		{
			Device:          "Pompa1/Vibration",
			Online:          true,
			Health:          "unacceptable",
			Remaining:       86400,
			Pretty:          "1d",
			EndsAt:          ends,
			DefaultDuration: "1w",
		},
		{Device: "Pompa2/Vibration", Pretty: "0d"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CountdownHeader, rows[0])
	assert.Equal(t, "Pompa1/Vibration", rows[1][0])
	assert.Equal(t, "Yes", rows[1][1])
	assert.Equal(t, "86400", rows[1][3])
	assert.Equal(t, "2030-03-04", rows[1][5])
	assert.Equal(t, "No", rows[2][1])
}

func TestGenerateCountdownReport_Empty(t *testing.T) {
	data, err := GenerateCountdownReport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
