package main

import (
	"encoding/hex"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aalhour/lmdbm"
	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type cli struct {
	Store storeConfig `group:"Store" env-namespace:"LMDBM"`
	Log   logConfig   `group:"Logging" namespace:"log" env-namespace:"LMDBM_LOG"`

	out io.Writer
}

// storeConfig selects and configures the store to operate on.
type storeConfig struct {
	Path     string `long:"path" short:"p" env:"PATH" required:"true" description:"Store directory"`
	Mode     string `long:"mode" env:"MODE" description:"Open mode (r, w, c or n). Defaults per command"`
	MapSize  string `long:"map-size" env:"MAP_SIZE" description:"Initial map size, e.g. 1MiB"`
	SubDB    string `long:"sub-db" env:"SUB_DB" description:"Named sub-database"`
	Compress bool   `long:"compress" env:"COMPRESS" description:"Compress values (gzip level 9 unless --codec is given)"`
	Codec    string `long:"codec" env:"CODEC" choice:"gzip" choice:"zlib" choice:"snappy" choice:"lz4" choice:"zstd" choice:"raw" description:"Value codec; implies --compress"`
	Level    int    `long:"codec-level" env:"CODEC_LEVEL" description:"Codec level, 1 (fast) to 9 (best)"`
	Checksum bool   `long:"checksum" env:"CHECKSUM" description:"Frame values with an XXH3 checksum"`
	Config   string `long:"config" env:"CONFIG" description:"YAML options file"`
	Hex      bool   `long:"hex" description:"Print keys and values in hex"`
}

// logConfig configures handling of log events.
type logConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"warn" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// initLog configures the logrus standard logger.
func initLog(cfg logConfig) error {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return errors.WithMessage(err, "unrecognized log level")
	}
	log.SetLevel(lvl)
	return nil
}

// options resolves the store options, starting from the options file when
// one is given. Explicit flags override file settings, and --mode overrides
// the command's default mode.
func (c *storeConfig) options(defaultMode lmdbm.OpenMode) (*lmdbm.Options, error) {
	var opts = lmdbm.DefaultOptions()
	if c.Config != "" {
		var err error
		if opts, err = lmdbm.LoadOptionsFile(afero.NewOsFs(), c.Config); err != nil {
			return nil, err
		}
	}
	// Each command picks its own mode; the file's mode is not used.
	opts.Mode = defaultMode

	if c.Mode != "" {
		mode, err := lmdbm.ParseMode(c.Mode)
		if err != nil {
			return nil, err
		}
		opts.Mode = mode
	}
	if c.MapSize != "" {
		size, err := humanize.ParseBytes(c.MapSize)
		if err != nil {
			return nil, errors.WithMessagef(lmdbm.ErrInvalidOptions, "--map-size %q", c.MapSize)
		}
		opts.MapSize = int64(size)
	}
	if c.SubDB != "" {
		opts.SubDatabase = c.SubDB
	}
	if c.Compress || c.Codec != "" || c.Checksum {
		var copts = lmdbm.DefaultCompressionOptions()
		if c.Codec != "" {
			codec, err := lmdbm.ParseCodec(c.Codec)
			if err != nil {
				return nil, err
			}
			copts.Codec = codec
		}
		if c.Level != 0 {
			copts.Level = c.Level
		}
		copts.Checksum = c.Checksum

		var err error
		if opts.Pipeline, err = lmdbm.NewCompressing(copts); err != nil {
			return nil, err
		}
	}

	var logger = logging.NewLogrusLogger(log.NewEntry(log.StandardLogger()).WithField("store", c.Path))
	logger.SetFatalHandler(func(string) {
		log.WithField("map-size", c.MapSize).Error("store could not grow; retry with a larger --map-size")
	})
	opts.Logger = logger
	return opts, nil
}

// open opens the configured store. Commands pass the mode they need when
// --mode is not given.
func (c *cli) open(defaultMode lmdbm.OpenMode) (*lmdbm.Store, error) {
	opts, err := c.Store.options(defaultMode)
	if err != nil {
		return nil, err
	}
	s, err := lmdbm.Open(c.Store.Path, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to open store")
	}
	return s, nil
}

// parseKey converts a command line key. A 0x prefix selects hex; otherwise
// text keys go through the store's text encoding when it has one.
func parseKey(s *lmdbm.Store, arg string) ([]byte, error) {
	if b, ok := parseHex(arg); ok {
		return b, nil
	}
	k, err := s.TextKey(arg)
	if errors.Is(err, lmdbm.ErrTextUnsupported) {
		return []byte(arg), nil
	}
	return k, err
}

// parseValue converts a command line value. A 0x prefix selects hex.
func parseValue(arg string) []byte {
	if b, ok := parseHex(arg); ok {
		return b
	}
	return []byte(arg)
}

func parseHex(arg string) ([]byte, bool) {
	if !strings.HasPrefix(arg, "0x") {
		return nil, false
	}
	b, err := hex.DecodeString(arg[2:])
	return b, err == nil
}

func (c *cli) formatKey(s *lmdbm.Store, key []byte) string {
	if c.Store.Hex {
		return hex.EncodeToString(key)
	}
	if _, err := s.TextKey(""); err == nil {
		return printable(s.KeyString(key), key)
	}
	return printable(string(key), key)
}

func (c *cli) formatValue(value []byte) string {
	if c.Store.Hex {
		return hex.EncodeToString(value)
	}
	return printable(string(value), value)
}

// printable returns text if it is valid printable UTF-8, else raw in hex.
func printable(text string, raw []byte) string {
	if !utf8.ValidString(text) {
		return hex.EncodeToString(raw)
	}
	for _, r := range text {
		if !unicode.IsPrint(r) && r != '\t' {
			return hex.EncodeToString(raw)
		}
	}
	return text
}
