package ingest

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
)

func drain(t *testing.T, r RowReader) ([]Row, int) {
	t.Helper()
	var rows []Row
	malformed := 0
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, malformed
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			malformed++
			continue
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestWorldBankCSV_StripsBOMAndReadsYearColumns(t *testing.T) {
	data := "\uFEFFCountry Name,Country Code,Indicator Name,Indicator Code,1960,1961,\n" +
		"Aruba,ABW,\"GDP growth (annual %)\",NY.GDP.MKTP.KD.ZG,,2.5,\n"

	r, err := NewWorldBankCSV(strings.NewReader(data))
	require.NoError(t, err)

	rows, malformed := drain(t, r)
	assert.Zero(t, malformed)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aruba", rows[0].CountryName)
	assert.Equal(t, "ABW", rows[0].CountryCode)
	assert.Equal(t, []Cell{{Year: "1960", Value: ""}, {Year: "1961", Value: "2.5"}}, rows[0].Cells)
	assert.False(t, rows[0].Long)
	assert.Equal(t, 2, rows[0].Line)
}

func TestWorldBankCSV_MissingColumns(t *testing.T) {
	_, err := NewWorldBankCSV(strings.NewReader("Country Name,Indicator Name\nA,B\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Country Code")

	_, err = NewWorldBankCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestWorldBankCSV_ShortRowsReadAsEmpty(t *testing.T) {
	data := "Country Name,Country Code,Indicator Name,Indicator Code,2020,2021\n" +
		"Aruba,ABW\n"

	r, err := NewWorldBankCSV(strings.NewReader(data))
	require.NoError(t, err)

	rows, _ := drain(t, r)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].IndicatorCode)
	assert.Empty(t, rows[0].Cells)
}

func TestOECDCSV_LongRows(t *testing.T) {
	data := "DATAFLOW,REF_AREA,MEASURE,Measure,TIME_PERIOD,OBS_VALUE\n" +
		"OECD.STI.STP:DSD_MSTI@DF_MSTI(1.3),FRA,G_XGDP,GERD as a percentage of GDP,2021,2.21\n" +
		"OECD.STI.STP:DSD_MSTI@DF_MSTI(1.3),DEU,G_XGDP,GERD as a percentage of GDP,2021,\n"

	r, err := NewOECDCSV(strings.NewReader(data))
	require.NoError(t, err)

	rows, _ := drain(t, r)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Long)
	assert.Equal(t, "FRA", rows[0].CountryCode)
	assert.Equal(t, "G_XGDP", rows[0].IndicatorCode)
	assert.Equal(t, "GERD as a percentage of GDP", rows[0].IndicatorName)
	assert.Equal(t, "OECD.STI.STP:DSD_MSTI@DF_MSTI(1.3)", rows[0].Dataflow)
	assert.Equal(t, []Cell{{Year: "2021", Value: "2.21"}}, rows[0].Cells)
	assert.Equal(t, "", rows[1].Cells[0].Value)
}

func TestIMFCSV_TabSeparated(t *testing.T) {
	data := "WEO Country Code\tISO\tWEO Subject Code\tCountry\tSubject Descriptor\tUnits\t1980\t1981\tEstimates Start After\n" +
		"111\tUSA\tNGDP_RPCH\tUnited States\tGross domestic product, constant prices\tPercent change\t-0.257\t2.537\t2023\n"

	r, err := NewIMFCSV(strings.NewReader(data))
	require.NoError(t, err)

	rows, _ := drain(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "111", rows[0].CountryCode)
	assert.Equal(t, "NGDP_RPCH", rows[0].IndicatorCode)
	assert.Equal(t, "Percent change", rows[0].Units)
	assert.Equal(t, []Cell{{Year: "1980", Value: "-0.257"}, {Year: "1981", Value: "2.537"}}, rows[0].Cells)
}

func TestNewReader(t *testing.T) {
	r, err := NewReader(KindOECD, strings.NewReader("REF_AREA,MEASURE,TIME_PERIOD,OBS_VALUE\n"))
	require.NoError(t, err)
	assert.IsType(t, &OECDCSV{}, r)

	_, err = NewReader(KindWorldBankAPI, strings.NewReader("a\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOECDCSV_SemicolonSeparated(t *testing.T) {
	data := "DATAFLOW;REF_AREA;MEASURE;Measure;TIME_PERIOD;OBS_VALUE\n" +
		"OECD.STI.STP:DSD_MSTI@DF_MSTI(1.3);FRA;G_XGDP;GERD, percentage of GDP;2021;2.21\n"

	r, err := NewOECDCSV(strings.NewReader(data))
	require.NoError(t, err)

	rows, _ := drain(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "FRA", rows[0].CountryCode)
	assert.Equal(t, "GERD, percentage of GDP", rows[0].IndicatorName)
	assert.Equal(t, []Cell{{Year: "2021", Value: "2.21"}}, rows[0].Cells)
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   rune
	}{
		{"comma", "a,b,c\n1;2;3;4;5\n", ','},
		{"tab", "a\tb\tc\n", '\t'},
		{"semicolon", "a;b;c\n", ';'},
		{"semicolon beats comma", "a;b,x;c\n", ';'},
		{"tie keeps comma", "a,b;c\n", ','},
		{"no delimiter", "single\n", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReader(strings.NewReader(tt.header))
			assert.Equal(t, tt.want, sniffDelimiter(br))
		})
	}
}
