// Command zipls lists or extracts the contents of a ZIP archive read as a
// stream, from a file or stdin, without ever seeking. Listing reads every
// readable entry to its end so that deferred sizes and checksums are verified
// too; entries the reader cannot decode are skipped with a warning.
package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/puppetlabs/zipstream"
)

func main() {
	var (
		configPath   = flag.String("config", "", "optional YAML config file")
		extractDir   = flag.String("x", "", "extract entries into this directory instead of listing")
		encodingName = flag.String("encoding", "", "fallback IANA charset for entry names")
		unicodeExtra = flag.Bool("unicode-extra", false, "honor Info-ZIP Unicode Path extra fields")
		storedDD     = flag.Bool("stored-dd", false, "allow stored entries with data descriptors")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = readConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read config")
		}
	}
	if *encodingName != "" {
		cfg.Encoding = *encodingName
	}
	if *unicodeExtra {
		cfg.UnicodeExtraFields = true
	}
	if *storedDD {
		cfg.StoredDataDescriptors = true
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		logger.Fatal().Err(err).Msg("invalid log level")
	} else {
		logger = logger.Level(lvl)
	}

	in := io.Reader(os.Stdin)
	name := "-"
	if flag.NArg() > 0 {
		name = flag.Arg(0)
		f, err := os.Open(name)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open archive")
		}
		defer f.Close()
		in = f
	}

	opts, err := cfg.readerOptions()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid reader configuration")
	}

	r := zipstream.NewReader(in, opts...)
	defer r.Close()

	if err := run(r, *extractDir, logger); err != nil {
		logger.Fatal().Err(err).Str("archive", name).Msg("failed to read archive")
	}
}

func run(r *zipstream.Reader, extractDir string, logger zerolog.Logger) error {
	for {
		e, err := r.NextEntry()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to advance to next entry")
		}

		if !r.CanReadEntryData(e) {
			logger.Warn().Str("name", e.Name).Uint16("method", e.Method).
				Msg("skipping unreadable entry")
			continue
		}

		if extractDir == "" {
			// Drain the entry so deferred sizes resolve and the CRC is
			// verified before reporting it.
			n, err := io.Copy(io.Discard, r)
			if err != nil {
				return errors.Wrapf(err, "failed to read entry %q", e.Name)
			}
			logger.Info().Str("name", e.Name).
				Uint16("method", e.Method).
				Int64("size", n).
				Uint64("compressed", e.CompressedSize64).
				Time("modified", e.Modified).
				Msg("entry")
			continue
		}

		if err := extract(r, e, extractDir); err != nil {
			return errors.Wrapf(err, "failed to extract entry %q", e.Name)
		}
		logger.Info().Str("name", e.Name).Msg("extracted")
	}
}

func extract(r *zipstream.Reader, e *zipstream.Entry, dir string) error {
	name := filepath.FromSlash(e.Name)
	if !filepath.IsLocal(name) {
		return errors.Errorf("entry name escapes the target directory")
	}
	dest := filepath.Join(dir, name)

	if e.IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
