package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the command line set a value.
const (
	DefaultSeparator  = "."
	DefaultBatchSize  = 50000
	DefaultBufferSize = 1 << 20
	DefaultNullMarker = "null"
	DefaultDelimiter  = ","
)

// Mode selects how the column union is computed.
type Mode string

const (
	// ModeFullMemory flattens every record in memory before writing.
	ModeFullMemory Mode = "full-memory"
	// ModeStreaming reads the input twice: once for columns, once for rows.
	ModeStreaming Mode = "streaming"
)

// Shape describes how values are laid out inside an input file.
type Shape string

const (
	// ShapeNDJSON is one JSON value per line.
	ShapeNDJSON Shape = "ndjson"
	// ShapeJSON is a single document or a top-level array of documents.
	ShapeJSON Shape = "json"
	// ShapeSingle is exactly one JSON object per file.
	ShapeSingle Shape = "single"
)

// ColumnCase rewrites each path segment before it is joined.
type ColumnCase string

const (
	ColumnCaseNone       ColumnCase = "none"
	ColumnCaseSnake      ColumnCase = "snake"
	ColumnCaseCamel      ColumnCase = "camel"
	ColumnCaseLowerCamel ColumnCase = "lower_camel"
	ColumnCaseKebab      ColumnCase = "kebab"
)

// Config represents the complete configuration for json2csv
type Config struct {
	Mode    Mode          `yaml:"mode"`
	Input   InputConfig   `yaml:"input"`
	Flatten FlattenConfig `yaml:"flatten"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

// InputConfig controls how input files are split into records
type InputConfig struct {
	Shape      Shape `yaml:"shape"`
	BatchSize  int   `yaml:"batch_size"`
	BufferSize int   `yaml:"buffer_size"`
	Strict     bool  `yaml:"strict"`
}

// FlattenConfig controls how records are flattened into columns
type FlattenConfig struct {
	Separator   string     `yaml:"separator"`
	IntToFloat  bool       `yaml:"int_to_float"`
	RemoveNull  bool       `yaml:"remove_null"`
	FlattenList bool       `yaml:"flatten_list"`
	ColumnCase  ColumnCase `yaml:"column_case"`
}

// OutputConfig controls CSV rendering
type OutputConfig struct {
	Delimiter  string `yaml:"delimiter"`
	NullMarker string `yaml:"null_marker"`
	UseCRLF    bool   `yaml:"use_crlf"`
}

// LogConfig controls diagnostics
type LogConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Mode: ModeFullMemory,
		Input: InputConfig{
			Shape:      ShapeNDJSON,
			BatchSize:  DefaultBatchSize,
			BufferSize: DefaultBufferSize,
		},
		Flatten: FlattenConfig{
			Separator:   DefaultSeparator,
			FlattenList: true,
			ColumnCase:  ColumnCaseNone,
		},
		Output: OutputConfig{
			Delimiter:  DefaultDelimiter,
			NullMarker: DefaultNullMarker,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".json2csv.yml", ".json2csv.yaml", "json2csv.yml", "json2csv.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks that every option holds a usable value
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFullMemory, ModeStreaming:
	default:
		return fmt.Errorf("invalid mode %q (want %q or %q)", c.Mode, ModeFullMemory, ModeStreaming)
	}

	switch c.Input.Shape {
	case ShapeNDJSON, ShapeJSON, ShapeSingle:
	default:
		return fmt.Errorf("invalid input shape %q (want ndjson, json or single)", c.Input.Shape)
	}

	switch c.Flatten.ColumnCase {
	case ColumnCaseNone, ColumnCaseSnake, ColumnCaseCamel, ColumnCaseLowerCamel, ColumnCaseKebab:
	default:
		return fmt.Errorf("invalid column case %q", c.Flatten.ColumnCase)
	}

	if c.Input.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Input.BatchSize)
	}
	if c.Input.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.Input.BufferSize)
	}
	if c.Flatten.Separator == "" {
		return fmt.Errorf("separator must not be empty")
	}

	if _, err := c.DelimiterRune(); err != nil {
		return err
	}

	return nil
}

// DelimiterRune returns the output delimiter as the single rune encoding/csv expects
func (c *Config) DelimiterRune() (rune, error) {
	d := c.Output.Delimiter
	if d == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", d)
	}
	return r, nil
}

// Overrides holds values given on the command line. Empty strings and zero
// numbers leave the loaded config untouched; true booleans switch options on.
type Overrides struct {
	Streaming     bool
	Shape         string
	IsJSON        bool
	Separator     string
	IntToFloat    bool
	RemoveNull    bool
	NoFlattenList bool
	ColumnCase    string
	BatchSize     int
	BufferSize    int
	Strict        bool
	Delimiter     string
	NullMarker    string
	LogFile       string
	Debug         bool
}

// ApplyOverrides merges CLI overrides into the config and validates the result
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.Streaming {
		c.Mode = ModeStreaming
	}
	if o.IsJSON {
		c.Input.Shape = ShapeJSON
	}
	if o.Shape != "" {
		c.Input.Shape = Shape(strings.ToLower(o.Shape))
	}
	if o.Separator != "" {
		c.Flatten.Separator = o.Separator
	}
	if o.IntToFloat {
		c.Flatten.IntToFloat = true
	}
	if o.RemoveNull {
		c.Flatten.RemoveNull = true
	}
	if o.NoFlattenList {
		c.Flatten.FlattenList = false
	}
	if o.ColumnCase != "" {
		c.Flatten.ColumnCase = ColumnCase(strings.ToLower(o.ColumnCase))
	}
	if o.BatchSize != 0 {
		c.Input.BatchSize = o.BatchSize
	}
	if o.BufferSize != 0 {
		c.Input.BufferSize = o.BufferSize
	}
	if o.Strict {
		c.Input.Strict = true
	}
	if o.Delimiter != "" {
		c.Output.Delimiter = o.Delimiter
	}
	if o.NullMarker != "" {
		c.Output.NullMarker = o.NullMarker
	}
	if o.LogFile != "" {
		c.Log.File = o.LogFile
	}
	if o.Debug {
		c.Log.Debug = true
	}

	return c.Validate()
}

// LoadConfigWithCLI loads the config file (if any) and applies CLI overrides on top
func LoadConfigWithCLI(configPath string, o Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if err := cfg.ApplyOverrides(o); err != nil {
		return nil, err
	}

	return cfg, nil
}
