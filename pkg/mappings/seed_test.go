package mappings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeed_Embedded(t *testing.T) {
	seed, err := LoadSeed()
	require.NoError(t, err)

	assert.Greater(t, len(seed.IMF.Countries), 180)
	assert.Len(t, seed.OECD.Countries, 47)

	codes := make(map[string]IMFCountry)
	for _, c := range seed.IMF.Countries {
		_, dup := codes[c.Code]
		assert.False(t, dup, "duplicate WEO code %s", c.Code)
		codes[c.Code] = c
	}
	assert.Equal(t, "USA", codes["111"].WBCode)
	assert.Equal(t, "XKX", codes["967"].WBCode)
	assert.Equal(t, "UVK", codes["967"].ISO)

	industries := make(map[string]int)
	for _, g := range seed.IMF.Indicators {
		industries[g.Industry] = len(g.Codes)
	}
	assert.Equal(t, map[string]int{"finance": 11, "context": 15, "trade": 6, "innovation": 5}, industries)
}

func TestParseSeed_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "weo code out of range",
			yaml: `
imf:
  countries: [{code: "42", iso: USA, name: "United States", wb_code: USA}]
  indicators: [{industry: finance, codes: [{code: NGDP_RPCH, description: "GDP Growth Rate"}]}]
oecd:
  countries: [{iso: FRA, name: France, code: FRA}]
  indicators: [{industry: innovation, codes: [{code: B, name: BERD, priority: 1}]}]
`,
		},
		{
			name: "unknown industry",
			yaml: `
imf:
  countries: [{code: "111", iso: USA, name: "United States", wb_code: USA}]
  indicators: [{industry: tourism, codes: [{code: NGDP_RPCH, description: "GDP Growth Rate"}]}]
oecd:
  countries: [{iso: FRA, name: France, code: FRA}]
  indicators: [{industry: innovation, codes: [{code: B, name: BERD, priority: 1}]}]
`,
		},
		{
			name: "lowercase iso code",
			yaml: `
imf:
  countries: [{code: "111", iso: USA, name: "United States", wb_code: USA}]
  indicators: [{industry: finance, codes: [{code: NGDP_RPCH, description: "GDP Growth Rate"}]}]
oecd:
  countries: [{iso: fra, name: France, code: FRA}]
  indicators: [{industry: innovation, codes: [{code: B, name: BERD, priority: 1}]}]
`,
		},
		{
			name: "missing oecd section",
			yaml: `
imf:
  countries: [{code: "111", iso: USA, name: "United States", wb_code: USA}]
  indicators: [{industry: finance, codes: [{code: NGDP_RPCH, description: "GDP Growth Rate"}]}]
`,
		},
		{
			name: "malformed yaml",
			yaml: "imf: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
