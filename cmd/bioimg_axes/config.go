package main

import (
	"flag"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of the environment variables read by the command, e.g. BIOIMG_BASE_DIR.
const EnvPrefix = "BIOIMG"

// Config holds the settings that can be given both in the environment and as flags.
// Flags set explicitly in the command line take precedence.
type Config struct {
	BaseDir string `envconfig:"BASE_DIR"`
	Mmap    bool   `envconfig:"MMAP" default:"false"`
}

// loadConfig reads the environment and then overrides it with the flags explicitly set in fs.
func loadConfig(fs *flag.FlagSet) (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to read configuration from the environment")
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base_dir":
			cfg.BaseDir = f.Value.String()
		case "mmap":
			cfg.Mmap = f.Value.(flag.Getter).Get().(bool)
		}
	})
	return cfg, nil
}
