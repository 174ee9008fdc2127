package mappings

import (
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedData is the static IMF and OECD mapping configuration.
type SeedData struct {
	IMF  IMFSeed  `yaml:"imf" validate:"required"`
	OECD OECDSeed `yaml:"oecd" validate:"required"`
}

type IMFSeed struct {
	Countries  []IMFCountry        `yaml:"countries" validate:"required,min=1,dive"`
	Indicators []IMFIndicatorGroup `yaml:"indicators" validate:"required,min=1,dive"`
}

// IMFCountry maps a WEO country code to its World Bank code.
// ISO differs from WBCode only where the agencies disagree (Kosovo: UVK vs XKX).
type IMFCountry struct {
	Code   string `yaml:"code" validate:"required,weocode"`
	ISO    string `yaml:"iso" validate:"required,iso3"`
	Name   string `yaml:"name" validate:"required,max=255"`
	WBCode string `yaml:"wb_code" validate:"required,iso3"`
}

type IMFIndicatorGroup struct {
	Industry string         `yaml:"industry" validate:"required,industry"`
	Codes    []IMFIndicator `yaml:"codes" validate:"required,min=1,dive"`
}

type IMFIndicator struct {
	Code        string `yaml:"code" validate:"required,max=50"`
	Description string `yaml:"description" validate:"required,max=255"`
}

type OECDSeed struct {
	Countries  []OECDCountry        `yaml:"countries" validate:"required,min=1,dive"`
	Indicators []OECDIndicatorGroup `yaml:"indicators" validate:"required,min=1,dive"`
}

// OECDCountry is an OECD member or partner economy. ISO is the unified code.
type OECDCountry struct {
	ISO     string `yaml:"iso" validate:"required,iso3"`
	Name    string `yaml:"name" validate:"required,max=255"`
	Code    string `yaml:"code" validate:"required,iso3"`
	Partner bool   `yaml:"partner"`
}

type OECDIndicatorGroup struct {
	Industry string          `yaml:"industry" validate:"required,industry"`
	Codes    []OECDIndicator `yaml:"codes" validate:"required,min=1,dive"`
}

type OECDIndicator struct {
	Code         string `yaml:"code" validate:"required,max=50"`
	Name         string `yaml:"name" validate:"required,max=255"`
	Description  string `yaml:"description" validate:"max=1000"`
	WBEquivalent string `yaml:"wb_equivalent" validate:"omitempty,max=50"`
	Priority     int    `yaml:"priority" validate:"gte=1,lte=3"`
}

// LoadSeed decodes and validates the embedded seed data.
func LoadSeed() (*SeedData, error) {
	return ParseSeed(seedYAML)
}

// ParseSeed decodes and validates seed data.
func ParseSeed(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed data: %w", err)
	}

	if err := newSeedValidator().Struct(&seed); err != nil {
		return nil, fmt.Errorf("invalid seed data: %w", err)
	}

	return &seed, nil
}

func newSeedValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("iso3", func(fl validator.FieldLevel) bool {
		_, ok := sanitize.CountryCode(fl.Field().String(), models.SourceWorldBank)
		return ok
	})
	_ = v.RegisterValidation("weocode", func(fl validator.FieldLevel) bool {
		_, ok := sanitize.CountryCode(fl.Field().String(), models.SourceIMF)
		return ok
	})
	_ = v.RegisterValidation("industry", func(fl validator.FieldLevel) bool {
		return industry.Known(fl.Field().String())
	})
	return v
}
