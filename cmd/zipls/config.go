package main

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"github.com/puppetlabs/zipstream"
)

type config struct {
	// Encoding is the IANA name of the charset used for entry names that
	// do not declare UTF-8, e.g. "IBM437" or "Shift_JIS".
	Encoding              string `yaml:"encoding"`
	UnicodeExtraFields    bool   `yaml:"unicode_extra_fields"`
	StoredDataDescriptors bool   `yaml:"stored_data_descriptors"`
	LogLevel              string `yaml:"log_level"`
}

func defaultConfig() config {
	return config{LogLevel: "info"}
}

func readConfig(path string) (config, error) {
	c := defaultConfig()

	bytes, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "failed reading config file: %s", path)
	}

	if err := yaml.Unmarshal(bytes, &c); err != nil {
		return c, errors.Wrap(err, "failed parsing configuration file")
	}

	return c, nil
}

func (c config) readerOptions() ([]zipstream.Option, error) {
	opts := []zipstream.Option{
		zipstream.WithUnicodeExtraFields(c.UnicodeExtraFields),
		zipstream.WithStoredDataDescriptors(c.StoredDataDescriptors),
	}
	if c.Encoding != "" {
		enc, err := ianaindex.IANA.Encoding(c.Encoding)
		if err != nil {
			return nil, errors.Wrapf(err, "unknown charset %q", c.Encoding)
		}
		if enc == nil {
			return nil, errors.Errorf("charset %q has no decoder", c.Encoding)
		}
		opts = append(opts, zipstream.WithEncoding(enc))
	}
	return opts, nil
}
