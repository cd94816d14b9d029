// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/seqtrain/train"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseSettings applies configuration overrides from settings -- typically
// the contents of a flag set by the user.
//
// The settings are a list separated by ";", e.g.:
// "learning_rate=0.01;batch_size=32;valid_criterion=ACC". The keys are the
// YAML field names of train.Config and the values are parsed as YAML, so
// they follow the same syntax as the configuration file.
//
// It updates config in place and returns the list of keys set, or an error
// for unknown keys or values that fail to parse. The resulting configuration
// is re-validated.
func ParseSettings(config *train.Config, settings string) ([]string, error) {
	known := knownSettings()
	var keysSet []string
	for _, setting := range strings.Split(settings, ";") {
		setting = strings.TrimSpace(setting)
		if setting == "" {
			continue
		}
		key, value, found := strings.Cut(setting, "=")
		if !found {
			return nil, errors.Errorf("invalid setting %q, expected key=value", setting)
		}
		key = strings.TrimSpace(key)
		if !known[key] {
			return nil, errors.Errorf("unknown configuration key %q, valid keys are %s",
				key, strings.Join(sortedKeys(known), ", "))
		}
		// Integers may use "_" as a thousands separator.
		value = strings.ReplaceAll(strings.TrimSpace(value), "_", "")
		doc := fmt.Sprintf("%s: %s", key, value)
		if err := yaml.Unmarshal([]byte(doc), config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse setting %q", setting)
		}
		keysSet = append(keysSet, key)
	}
	if err := config.Validate(); err != nil {
		return keysSet, errors.WithMessagef(err, "invalid configuration after applying %q", settings)
	}
	return keysSet, nil
}

// SettingsFlag creates a string flag (if name is empty it defaults to "set")
// whose value can later be applied with ParseSettings.
func SettingsFlag(name string) *string {
	if name == "" {
		name = "set"
	}
	return flag.String(name, "",
		`Configuration overrides, a ";"-separated list of key=value pairs using `+
			`the configuration file's YAML keys, e.g. "learning_rate=0.01;batch_size=32".`)
}

// knownSettings lists the YAML keys of train.Config.
func knownSettings() map[string]bool {
	var node yaml.Node
	contents, err := yaml.Marshal(train.DefaultConfig())
	if err != nil {
		return nil
	}
	if err = yaml.Unmarshal(contents, &node); err != nil {
		return nil
	}
	known := make(map[string]bool)
	if len(node.Content) > 0 {
		mapping := node.Content[0]
		for ii := 0; ii+1 < len(mapping.Content); ii += 2 {
			known[mapping.Content[ii].Value] = true
		}
	}
	return known
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
