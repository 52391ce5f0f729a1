package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Model
	Period        float64 `mapstructure:"period" yaml:"period" validate:"gt=0"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
	Alpha         float64 `mapstructure:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	YPadding      float64 `mapstructure:"y_padding" yaml:"y_padding" validate:"gte=0"`

	// Inputs
	Pattern     string `mapstructure:"pattern" yaml:"pattern" validate:"required"`
	TimeColumn  string `mapstructure:"time_column" yaml:"time_column" validate:"required"`
	ValueColumn string `mapstructure:"value_column" yaml:"value_column" validate:"required"`
	SheetName   string `mapstructure:"sheet_name" yaml:"sheet_name"`

	// Outputs
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	ShowPoints   bool   `mapstructure:"show_points" yaml:"show_points"`
	SaveSummary  bool   `mapstructure:"save_summary" yaml:"save_summary"`
	SaveFigures  bool   `mapstructure:"save_figures" yaml:"save_figures"`
	SummaryName  string `mapstructure:"summary_name" yaml:"summary_name" validate:"required"`
	SummaryXLSX  bool   `mapstructure:"summary_xlsx" yaml:"summary_xlsx"`
	Manifest     bool   `mapstructure:"manifest" yaml:"manifest"`
	FigureFormat string `mapstructure:"figure_format" yaml:"figure_format" validate:"oneof=png svg"`
	FigureWidth  int    `mapstructure:"figure_width" yaml:"figure_width" validate:"gte=200"`
	FigureHeight int    `mapstructure:"figure_height" yaml:"figure_height" validate:"gte=150"`
	CurvePoints  int    `mapstructure:"curve_points" yaml:"curve_points" validate:"gte=2"`
}

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and returns a readable error listing offending keys.
func (c *Global) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s (%s=%s, got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".cosinor"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.cosinor/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// setDefaults registers the built-in settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("period", 24.0)
	v.SetDefault("max_iterations", 1000)
	v.SetDefault("alpha", 0.05)
	v.SetDefault("pattern", "*.tsv")
	v.SetDefault("time_column", "ZT")
	v.SetDefault("value_column", "expression ratio (goi/hk)")
	v.SetDefault("sheet_name", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("show_points", true)
	v.SetDefault("save_summary", true)
	v.SetDefault("save_figures", true)
	v.SetDefault("summary_name", "cosinor_summary.csv")
	v.SetDefault("summary_xlsx", false)
	v.SetDefault("manifest", false)
	v.SetDefault("figure_format", "png")
	v.SetDefault("figure_width", 1350)
	v.SetDefault("figure_height", 750)
	v.SetDefault("curve_points", 500)
	v.SetDefault("y_padding", 0.1)
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("COSINOR")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}
