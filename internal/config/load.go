package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a job file, decodes it by extension and applies defaults and
// environment expansion. It does not validate; call Validate for that.
func Load(path string) (Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config: %w", err)
	}

	var j Job
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &j); err != nil {
			return Job{}, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&j); err != nil {
			return Job{}, fmt.Errorf("decode json config %s: %w", path, err)
		}
	}

	return j.Expand().WithDefaults(), nil
}

// Expand applies os.ExpandEnv to fields that commonly carry secrets or
// deployment-specific hosts.
func (j Job) Expand() Job {
	j.Source.Path = os.ExpandEnv(j.Source.Path)
	j.Source.URL = os.ExpandEnv(j.Source.URL)
	j.Output.Path = os.ExpandEnv(j.Output.Path)
	j.Export.DSN = os.ExpandEnv(j.Export.DSN)
	return j
}
