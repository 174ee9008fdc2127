package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/ingest"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand("test")

	for _, path := range [][]string{
		{"migrate"},
		{"mappings", "seed"},
		{"ingest", "wb-csv"},
		{"ingest", "wb-api"},
		{"ingest", "oecd"},
		{"ingest", "imf"},
		{"validate"},
		{"summary"},
		{"serve"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRootCommand_Flags(t *testing.T) {
	root := NewRootCommand("test")

	wbCSV, _, err := root.Find([]string{"ingest", "wb-csv"})
	require.NoError(t, err)
	for _, name := range []string{"url", "main", "country", "series", "availability"} {
		assert.NotNil(t, wbCSV.Flags().Lookup(name), name)
	}

	validate, _, err := root.Find([]string{"validate"})
	require.NoError(t, err)
	for _, name := range []string{"out", "xlsx", "min-score"} {
		assert.NotNil(t, validate.Flags().Lookup(name), name)
	}
}

func TestWBCSVOptions_Location(t *testing.T) {
	tests := []struct {
		name    string
		opts    wbCSVOptions
		want    string
		wantErr bool
	}{
		{"url", wbCSVOptions{url: "WDICSV.csv"}, "WDICSV.csv", false},
		{"main alias", wbCSVOptions{main: "WDICSV.csv"}, "WDICSV.csv", false},
		{"both agree", wbCSVOptions{url: "a.csv", main: "a.csv"}, "a.csv", false},
		{"both differ", wbCSVOptions{url: "a.csv", main: "b.csv"}, "", true},
		{"neither", wbCSVOptions{country: "WDICountry.csv"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.location()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIngest_RequiresInput(t *testing.T) {
	_, err := execute(t, "ingest", "oecd")
	assert.ErrorIs(t, err, errNoInput)

	_, err = execute(t, "ingest", "wb-csv", "--country", "WDICountry.csv")
	assert.ErrorIs(t, err, errNoInput)
}

func TestIngestWBAPI_RejectsInvertedRange(t *testing.T) {
	_, err := execute(t, "ingest", "wb-api", "--from", "2020", "--to", "2010")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from 2020 is after --to 2010")
}

func TestQualityGate(t *testing.T) {
	assert.NoError(t, qualityGate(42, 0))
	assert.NoError(t, qualityGate(70, 70))
	assert.NoError(t, qualityGate(88.1, 70))

	err := qualityGate(69.99, 70)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrQualityGateFailed))
	assert.Contains(t, err.Error(), "69.99 < 70.00")
}

func TestReplaceable(t *testing.T) {
	ok := &ingest.Result{Observations: []models.Observation{{CountryCode: "USA"}}}
	assert.NoError(t, replaceable(ok))

	empty := &ingest.Result{Stats: ingest.Stats{Source: models.SourceOECD, RowsSeen: 3, ValidationErrors: 2, SkippedRows: 1}}
	err := replaceable(empty)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
	assert.Contains(t, err.Error(), "OECD input produced no valid observations (3 rows, 2 invalid, 1 skipped)")
}
