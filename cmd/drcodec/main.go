package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/config"
	"github.com/linuxmatters/drcodec/internal/flac"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// Globals are the flags shared by every command
type Globals struct {
	Config  string `help:"Config file (YAML, TOML or JSON)" placeholder:"FILE"`
	Verbose bool   `short:"v" help:"Log debug output to stderr"`
	Strict  bool   `help:"Report damaged FLAC frames instead of skipping them"`

	settings *config.Settings
	log      *slog.Logger
	logFile  *os.File
}

var CLI struct {
	Globals

	Info       InfoCmd       `cmd:"" help:"Show format and metadata of an audio file"`
	Decode     DecodeCmd     `cmd:"" help:"Decode FLAC, MP3 or WAV to a WAV file"`
	Seek       SeekCmd       `cmd:"" help:"Seek to a PCM frame of a FLAC file and print samples"`
	Seekpoints SeekpointsCmd `cmd:"" help:"Compute evenly spaced seek points for a FLAC file"`
	Verify     VerifyCmd     `cmd:"" help:"Check a FLAC file against a reference decoder and its MD5"`
	Analyze    AnalyzeCmd    `cmd:"" help:"Report levels and spectrum of an audio file"`
	Play       PlayCmd       `cmd:"" help:"Play an audio file"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(cli.AppName),
		kong.Description(cli.AppDescription),
		kong.Vars{
			"version":    version,
			"seekpoints": strconv.Itoa(config.DefaultSeekPoints),
		},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := CLI.Globals.setup(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	err := ctx.Run(&CLI.Globals)
	CLI.Globals.close()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// setup loads settings and installs the logger
func (g *Globals) setup() error {
	settings, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if g.Strict {
		settings.Strict = true
	}
	level := settings.LogLevel
	if g.Verbose {
		level = "debug"
	}

	logger, logFile, err := config.NewLogger(level, settings.LogFile, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)

	g.settings = settings
	g.log = logger
	g.logFile = logFile
	return nil
}

func (g *Globals) close() {
	if g.logFile != nil {
		g.logFile.Close()
	}
}

// flacOptions builds decoder options from the settings. A nil seek uses
// the configured strategies.
func (g *Globals) flacOptions(seek *flac.SeekOptions) *flac.Options {
	if seek == nil {
		seek = &flac.SeekOptions{
			AllowSeekTable:    g.settings.SeekTable,
			AllowBinarySearch: g.settings.SeekBinary,
			AllowBruteForce:   g.settings.SeekBruteForce,
		}
	}
	return &flac.Options{
		Strict: g.settings.Strict,
		Seek:   seek,
		Logger: g.log,
	}
}

// VersionCmd prints the version
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	cli.PrintVersion(version)
	return nil
}
