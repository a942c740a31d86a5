package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyCMS         = "cms"
	keyBatch       = "batch"
	keyCollections = "collections"
	keyLogging     = "logging"
)

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. A section present in the file is decoded over the
// target's current values, so keys missing inside a section keep their
// defaults. Unknown top-level keys are ignored.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying config section %q: %w", key, err)
		}
	}

	return nil
}

func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyCMS:
		return node.Decode(&target.CMS)
	case keyBatch:
		return node.Decode(&target.Batch)
	case keyCollections:
		return node.Decode(&target.Collections)
	case keyLogging:
		return node.Decode(&target.Logging)
	default:
		return nil
	}
}
