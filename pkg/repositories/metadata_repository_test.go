//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/testhelpers"
)

func setupMetadataTest(t *testing.T) context.Context {
	t.Helper()

	macroDB := testhelpers.GetMacroDB(t)
	ctx := macroDB.WithScope(t, "metadata-test")
	clean := func() {
		for _, table := range []string{"countries", "indicator_metadata", "country_indicator_availability"} {
			if _, err := scopeConn(t, ctx).Exec(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("Failed to clean %s: %v", table, err)
			}
		}
	}
	clean()
	t.Cleanup(clean)
	return ctx
}

func TestMetadataRepository_UpsertCountries(t *testing.T) {
	ctx := setupMetadataTest(t)
	repo := NewMetadataRepository(2)

	n, err := repo.UpsertCountries(ctx, []models.CountryMetadata{
		{CountryCode: "FRA", ShortName: "France", TableName: "France", Region: "Europe & Central Asia", IncomeGroup: "High income"},
		{CountryCode: "KEN", ShortName: "Kenya", TableName: "Kenya"},
		{CountryCode: "BRA", ShortName: "Brazil"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Second load updates in place.
	_, err = repo.UpsertCountries(ctx, []models.CountryMetadata{
		{CountryCode: "KEN", ShortName: "Kenya", Region: "Sub-Saharan Africa"},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, scopeConn(t, ctx).QueryRow(ctx, "SELECT count(*) FROM countries").Scan(&count))
	assert.Equal(t, 3, count)

	var region *string
	require.NoError(t, scopeConn(t, ctx).QueryRow(ctx,
		"SELECT region FROM countries WHERE country_code = 'KEN'").Scan(&region))
	require.NotNil(t, region)
	assert.Equal(t, "Sub-Saharan Africa", *region)
}

func TestMetadataRepository_UpsertIndicatorsAndAvailability(t *testing.T) {
	ctx := setupMetadataTest(t)
	repo := NewMetadataRepository(0)

	n, err := repo.UpsertIndicators(ctx, []models.IndicatorMetadata{
		{IndicatorCode: "EG.ELC.ACCS.ZS", IndicatorName: "Access to electricity (% of population)", Topic: "Environment: Energy production & use", Industry: "energy"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.UpsertAvailability(ctx, []models.Availability{
		{CountryCode: "FRA", IndicatorCode: "EG.ELC.ACCS.ZS", LastUpdated: "2024-06-28"},
		{CountryCode: "KEN", IndicatorCode: "EG.ELC.ACCS.ZS"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var industry string
	require.NoError(t, scopeConn(t, ctx).QueryRow(ctx,
		"SELECT industry FROM indicator_metadata WHERE indicator_code = 'EG.ELC.ACCS.ZS'").Scan(&industry))
	assert.Equal(t, "energy", industry)

	var missing *string
	require.NoError(t, scopeConn(t, ctx).QueryRow(ctx,
		"SELECT last_updated FROM country_indicator_availability WHERE country_code = 'KEN'").Scan(&missing))
	assert.Nil(t, missing)
}

func TestMetadataRepository_EmptyInputSkipsDatabase(t *testing.T) {
	n, err := NewMetadataRepository(10).UpsertCountries(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
