package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvAPIURL       = "CMSBULK_API_URL"
	EnvAPIToken     = "CMSBULK_API_TOKEN"
	EnvBatchSize    = "CMSBULK_BATCH_SIZE"
	EnvBatchDelayMS = "CMSBULK_BATCH_DELAY_MS"
	EnvLogLevel     = "CMSBULK_LOG_LEVEL"
	EnvLogFormat    = "CMSBULK_LOG_FORMAT"
	EnvLogFile      = "CMSBULK_LOG_FILE"
)

// defaultEnvFile is loaded when present and no --env-file flag is given.
const defaultEnvFile = ".env"

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. An empty path loads ".env" if it
// exists; a named file must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with CMSBULK_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if cfg == nil {
		return errors.New("nil *Config in ApplyEnv")
	}

	if v, ok := lookupTrimmed(lookup, EnvAPIURL); ok {
		cfg.CMS.BaseURL = v
	}
	if v, ok := lookupTrimmed(lookup, EnvAPIToken); ok {
		cfg.CMS.Token = v
	}
	if v, ok := lookupTrimmed(lookup, EnvBatchSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBatchSize, err)
		}
		cfg.Batch.Size = n
	}
	if v, ok := lookupTrimmed(lookup, EnvBatchDelayMS); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBatchDelayMS, err)
		}
		cfg.Batch.DelayMS = n
	}
	if v, ok := lookupTrimmed(lookup, EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookupTrimmed(lookup, EnvLogFormat); ok {
		cfg.Logging.Format = v
	}
	if v, ok := lookupTrimmed(lookup, EnvLogFile); ok {
		cfg.Logging.File = v
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
