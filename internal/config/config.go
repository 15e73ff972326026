package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/schedule"
)

var (
	ENV_LOG_LEVEL     = "BONDCALC_LOG_LEVEL"
	ENV_DESTINATION   = "BONDCALC_DESTINATION"
	ENV_AWS_PROFILE   = "BONDCALC_AWS_PROFILE"
	ENV_WORKERS       = "BONDCALC_WORKERS"
	ENV_BUCKET_NAME   = "GILTS_DATA_BUCKET_NAME"
	ENV_BUCKET_PREFIX = "GILTS_DATA_BUCKET_PREFIX"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Calendar struct {
		Name     string   `yaml:"name"`
		Holidays []string `yaml:"holidays"`
	} `yaml:"calendar"`
	Schedule struct {
		StubPolicy string `yaml:"stub_policy"`
		Convention string `yaml:"convention"`
	} `yaml:"schedule"`
	Solver struct {
		Lower         float64 `yaml:"lower"`
		Upper         float64 `yaml:"upper"`
		Tolerance     float64 `yaml:"tolerance"`
		MaxIterations int     `yaml:"max_iterations"`
	} `yaml:"solver"`
	Bonds   []BondConfig `yaml:"bonds"`
	Sources struct {
		DMOURL          string `yaml:"dmo_url"`
		DividendDataURL string `yaml:"dividend_data_url"`
	} `yaml:"sources"`
	Storage struct {
		Destination string `yaml:"destination"`
		AWSProfile  string `yaml:"aws_profile"`
	} `yaml:"storage"`
	Workers int `yaml:"workers"`
}

// BondConfig is a statically configured bond descriptor.
type BondConfig struct {
	Code           string  `yaml:"code"`
	IssueDate      string  `yaml:"issue_date"`
	MaturityDate   string  `yaml:"maturity_date"`
	CouponRate     float64 `yaml:"coupon_rate"`
	TenorMonths    int     `yaml:"tenor_months"`
	DayCount       string  `yaml:"day_count"`
	SettlementDays int     `yaml:"settlement_days"`
	FaceValue      float64 `yaml:"face_value"`
}

// Descriptor converts the YAML form into a bond descriptor.
func (b BondConfig) Descriptor() (bond.Descriptor, error) {
	issue, err := calendar.ParseDate(b.IssueDate)
	if err != nil {
		return bond.Descriptor{}, fmt.Errorf("bond %s: issue_date: %w", b.Code, err)
	}
	maturity, err := calendar.ParseDate(b.MaturityDate)
	if err != nil {
		return bond.Descriptor{}, fmt.Errorf("bond %s: maturity_date: %w", b.Code, err)
	}
	dc, err := daycount.Parse(b.DayCount)
	if err != nil {
		return bond.Descriptor{}, fmt.Errorf("bond %s: %w", b.Code, err)
	}

	return bond.Descriptor{
		Code:           b.Code,
		IssueDate:      issue,
		MaturityDate:   maturity,
		CouponRate:     b.CouponRate,
		TenorMonths:    b.TenorMonths,
		DayCount:       dc,
		SettlementDays: b.SettlementDays,
		FaceValue:      b.FaceValue,
	}, nil
}

// Load reads an optional .env file, then the YAML file at path (a missing file
// is not an error), then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := os.Getenv(ENV_LOG_LEVEL); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(ENV_DESTINATION); v != "" {
		cfg.Storage.Destination = v
	}
	if v := os.Getenv(ENV_AWS_PROFILE); v != "" {
		cfg.Storage.AWSProfile = v
	}
	if v := os.Getenv(ENV_WORKERS); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if bucket := os.Getenv(ENV_BUCKET_NAME); bucket != "" {
		dst := "s3://" + bucket
		if prefix := strings.Trim(os.Getenv(ENV_BUCKET_PREFIX), "/"); prefix != "" {
			dst += "/" + prefix
		}
		cfg.Storage.Destination = dst
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Calendar.Name == "" {
		cfg.Calendar.Name = "WeekendsOnly"
	}
	if cfg.Storage.AWSProfile == "" {
		cfg.Storage.AWSProfile = "default"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the parts of the configuration that are parsed lazily.
func (c *Config) Validate() error {
	if _, err := c.Holidays(); err != nil {
		return err
	}
	if _, err := schedule.ParseStubPolicy(c.Schedule.StubPolicy); err != nil {
		return err
	}
	if _, err := calendar.ParseBusinessDayConvention(c.Schedule.Convention); err != nil {
		return err
	}
	if c.Solver.Lower != 0 || c.Solver.Upper != 0 {
		if c.Solver.Lower >= c.Solver.Upper {
			return fmt.Errorf("solver: lower bound %g must be below upper bound %g", c.Solver.Lower, c.Solver.Upper)
		}
	}
	seen := map[string]bool{}
	for _, b := range c.Bonds {
		if b.Code == "" {
			return fmt.Errorf("bonds: entry without code")
		}
		if seen[b.Code] {
			return fmt.Errorf("bonds: duplicate code %s", b.Code)
		}
		seen[b.Code] = true
		if _, err := b.Descriptor(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Holidays() ([]time.Time, error) {
	holidays := make([]time.Time, 0, len(c.Calendar.Holidays))
	for _, h := range c.Calendar.Holidays {
		t, err := calendar.ParseDate(h)
		if err != nil {
			return nil, fmt.Errorf("calendar: %w", err)
		}
		holidays = append(holidays, t)
	}
	return holidays, nil
}

// BondOptions turns the calendar, schedule and solver sections into bond options.
func (c *Config) BondOptions() ([]bond.Option, error) {
	holidays, err := c.Holidays()
	if err != nil {
		return nil, err
	}
	stub, err := schedule.ParseStubPolicy(c.Schedule.StubPolicy)
	if err != nil {
		return nil, err
	}
	conv, err := calendar.ParseBusinessDayConvention(c.Schedule.Convention)
	if err != nil {
		return nil, err
	}

	return []bond.Option{
		bond.WithCalendar(calendar.New(c.Calendar.Name, holidays...)),
		bond.WithStubPolicy(stub),
		bond.WithConvention(conv),
		bond.WithSolver(bond.SolverConfig{
			Lower:         c.Solver.Lower,
			Upper:         c.Solver.Upper,
			Tolerance:     c.Solver.Tolerance,
			MaxIterations: c.Solver.MaxIterations,
		}),
	}, nil
}

// Descriptors returns the statically configured bonds keyed by code.
func (c *Config) Descriptors() (map[string]bond.Descriptor, error) {
	out := make(map[string]bond.Descriptor, len(c.Bonds))
	for _, b := range c.Bonds {
		desc, err := b.Descriptor()
		if err != nil {
			return nil, err
		}
		out[b.Code] = desc
	}
	return out, nil
}
