package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/davecgh/go-spew/spew"

	"github.com/mcncl/json2csv/internal/config"
	"github.com/mcncl/json2csv/internal/converter"
	"github.com/mcncl/json2csv/internal/errors"
	"github.com/mcncl/json2csv/internal/logging"
	"github.com/mcncl/json2csv/internal/source"
	"github.com/mcncl/json2csv/internal/writer"
)

// CLI defines the command-line interface
var CLI struct {
	Input         string `help:"Input JSON file, directory of files, or '-' for stdin." short:"i"`
	Output        string `help:"Output CSV file. If not specified or '-', writes to stdout." short:"o"`
	Streaming     bool   `help:"Read the input twice with bounded memory instead of holding every record." short:"s"`
	Sep           string `help:"Separator joining nested keys (default \".\")."`
	IntToFloat    bool   `help:"Write integers as floating-point numbers."`
	RemoveNull    bool   `help:"Drop null fields instead of writing the null marker."`
	IsJSON        bool   `help:"Input is a JSON array of records (same as --shape=json)."`
	Shape         string `help:"Input shape: ndjson, json or single."`
	NoFlattenList bool   `help:"Keep objects inside arrays nested instead of flattening them."`
	BatchSize     int    `help:"Number of records per batch."`
	BufferSize    int    `help:"Read buffer size in bytes."`
	NullMarker    string `help:"Text written for null values (default \"null\")."`
	Delimiter     string `help:"CSV field delimiter (default \",\"; use '\\t' for tab)."`
	ColumnCase    string `help:"Rename key segments: none, snake, camel, lower_camel or kebab."`
	Strict        bool   `help:"Abort the run when an input stream cannot be split into values."`
	Config        string `help:"Path to config file. If not specified, searches for .json2csv.yml in the current and parent directories." short:"c" type:"path"`
	LogFile       string `help:"Also write logs to this file." type:"path"`
	Debug         bool   `help:"Enable debug logging." short:"d"`
	Version       bool   `help:"Show version information." short:"v"`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
	Logger *logging.Logger
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	parser := kong.Must(&CLI,
		kong.Name("json2csv"),
		kong.Description("A tool to convert nested JSON records into a flat CSV file"),
		kong.UsageOnError(),
	)

	_, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if CLI.Version {
		fmt.Printf("json2csv version %s\n", Version)
		return
	}

	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: json2csv --help\n")
		os.Exit(1)
	}
}

// execute loads configuration, sets up logging and runs the conversion
func execute() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{File: cfg.Log.File, Debug: cfg.Log.Debug})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	return run(&Context{Debug: cfg.Log.Debug, Config: cfg, Logger: logger})
}

// loadConfig merges the config file, if any, with command-line flags
func loadConfig() (*config.Config, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfigWithCLI(configPath, config.Overrides{
		Streaming:     CLI.Streaming,
		Shape:         CLI.Shape,
		IsJSON:        CLI.IsJSON,
		Separator:     CLI.Sep,
		IntToFloat:    CLI.IntToFloat,
		RemoveNull:    CLI.RemoveNull,
		NoFlattenList: CLI.NoFlattenList,
		ColumnCase:    CLI.ColumnCase,
		BatchSize:     CLI.BatchSize,
		BufferSize:    CLI.BufferSize,
		Strict:        CLI.Strict,
		Delimiter:     CLI.Delimiter,
		NullMarker:    CLI.NullMarker,
		LogFile:       CLI.LogFile,
		Debug:         CLI.Debug,
	})
	if err != nil {
		if configPath != "" {
			return nil, errors.NewConfigError(fmt.Sprintf("config '%s': %v", configPath, err), err)
		}
		return nil, errors.NewConfigError(err.Error(), err)
	}
	return cfg, nil
}

// run executes the main program logic
func run(ctx *Context) error {
	log := ctx.Logger
	if log == nil {
		log = logging.Discard()
	}
	if ctx.Debug {
		log.Debug("effective configuration", "config", spew.Sdump(ctx.Config))
	}

	// 1. Find the inputs
	inputs, err := source.Discover(CLI.Input)
	if err != nil {
		return err
	}

	// 2. Prepare the output
	out, err := writer.CreateFile(CLI.Output)
	if err != nil {
		return err
	}

	// 3. Convert
	conv := converter.New(ctx.Config, log.Logger)
	stats, err := conv.Run(inputs, out)
	if err != nil {
		out.Abort()
		return err
	}

	// 4. Publish the result
	if err := out.Commit(); err != nil {
		return err
	}
	if out.Name() != writer.StdoutName {
		log.Info("CSV written", "path", out.Name(), "rows", stats.Records, "columns", stats.Columns)
	}
	return nil
}
