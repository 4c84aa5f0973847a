package config

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/skytrace/errors"
)

// CheckFile strictly decodes a TOML config file and validates the result
// merged over defaults. It returns the keys present in the file that do not
// map to any configuration field; Viper silently ignores those, which hides
// typos like "store.colection".
func CheckFile(path string) (unknown []string, err error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)

	if err := cfg.Validate(); err != nil {
		return unknown, err
	}
	return unknown, nil
}
