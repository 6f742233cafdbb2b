package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Decode settings
const (
	DefaultChunkFrames   = 4096 // PCM frames per read when transcoding
	PlaybackBufferFrames = 2048 // PCM frames handed to the audio device per write
	DefaultSeekPoints    = 100  // Seek points computed when none are requested
)

// Analysis settings
const (
	FFTSize = 2048
	NumBars = 64 // Spectrum bands reported by analyze
)

// Spectrum image settings
const (
	ImageWidth  = 1280
	ImageHeight = 720
	ImageMargin = 48
	BarGap      = 4
	Supersample = 2 // Drawn at this multiple of the output size, then scaled down

	// Bar colour (#3DDC84)
	BarColorR = 61
	BarColorG = 220
	BarColorB = 132

	// Caption colour (#FFB000)
	TextColorR = 255
	TextColorG = 176
	TextColorB = 0
)

// Settings holds the options that may come from a config file or the
// environment. Command-line flags override them.
type Settings struct {
	LogLevel string
	LogFile  string

	// Strict reports damaged FLAC frames instead of skipping them
	Strict bool

	SeekTable      bool
	SeekBinary     bool
	SeekBruteForce bool

	ChunkFrames int

	// Volume of playback in percent
	Volume int
}

// EnvPrefix prefixes environment overrides, e.g. DRCODEC_LOGLEVEL or
// DRCODEC_SEEK_BINARY.
const EnvPrefix = "DRCODEC"

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "warn")
	v.SetDefault("logfile", "")
	v.SetDefault("strict", false)
	v.SetDefault("seek.table", true)
	v.SetDefault("seek.binary", true)
	v.SetDefault("seek.bruteforce", true)
	v.SetDefault("chunkframes", DefaultChunkFrames)
	v.SetDefault("volume", 100)
}

// Load reads settings from path, layered over the defaults and under the
// environment. An empty path or a missing file leaves the defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				slog.Info("no config file found", "configFilePath", path)
			} else {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	s := &Settings{
		LogLevel:       v.GetString("loglevel"),
		LogFile:        v.GetString("logfile"),
		Strict:         v.GetBool("strict"),
		SeekTable:      v.GetBool("seek.table"),
		SeekBinary:     v.GetBool("seek.binary"),
		SeekBruteForce: v.GetBool("seek.bruteforce"),
		ChunkFrames:    v.GetInt("chunkframes"),
		Volume:         v.GetInt("volume"),
	}
	if s.ChunkFrames <= 0 {
		return nil, fmt.Errorf("chunkframes must be positive, got %d", s.ChunkFrames)
	}
	if s.Volume < 0 || s.Volume > 100 {
		return nil, fmt.Errorf("volume must be between 0 and 100, got %d", s.Volume)
	}
	return s, nil
}
