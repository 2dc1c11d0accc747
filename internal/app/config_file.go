package app

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	yaml "gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

// FileConfig is the single-file configuration (YAML or JSON). Nested
// sections mirror the flag names.
type FileConfig struct {
	Targets []string `yaml:"targets" json:"targets"`
	Input   string   `yaml:"input" json:"input"`

	Output struct {
		Markdown string `yaml:"markdown" json:"markdown"`
		JSON     string `yaml:"json" json:"json"`
		PDF      string `yaml:"pdf" json:"pdf"`
		XLSX     string `yaml:"xlsx" json:"xlsx"`
	} `yaml:"output" json:"output"`

	Render  *bool `yaml:"render" json:"render"`
	Browser struct {
		URL      string `yaml:"url" json:"url"`
		Viewport string `yaml:"viewport" json:"viewport"`
	} `yaml:"browser" json:"browser"`

	UserAgent string `yaml:"userAgent" json:"userAgent"`
	Timeout   string `yaml:"timeout" json:"timeout"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxAge      string `yaml:"maxAge" json:"maxAge"`
		Clear       *bool  `yaml:"clear" json:"clear"`
		StrictPerms *bool  `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Max struct {
		Concurrent int `yaml:"concurrent" json:"concurrent"`
	} `yaml:"max" json:"max"`

	Rate struct {
		PerHost *float64 `yaml:"perHost" json:"perHost"`
	} `yaml:"rate" json:"rate"`

	Robots struct {
		Ignore *bool `yaml:"ignore" json:"ignore"`
	} `yaml:"robots" json:"robots"`

	Verbose *bool `yaml:"verbose" json:"verbose"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("goprice.config.schema.json", strings.NewReader(configSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("goprice.config.schema.json")
	})
	return schema, schemaErr
}

// LoadConfigFile reads YAML or JSON (chosen by extension, YAML otherwise),
// validates it against the embedded schema and decodes it.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	var doc any
	if filepath.Ext(path) == ".json" {
		if err := json.Unmarshal(b, &doc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	} else if err := yaml.Unmarshal(b, &doc); err != nil {
		return fc, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return fc, nil
	}

	// Round-trip through JSON so the validator sees plain JSON types.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return fc, fmt.Errorf("config: %w", err)
	}
	sch, err := configSchema()
	if err != nil {
		return fc, fmt.Errorf("config schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return fc, fmt.Errorf("config: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fc, fmt.Errorf("config %s: %w", path, err)
	}
	if err := json.Unmarshal(canonical, &fc); err != nil {
		return fc, fmt.Errorf("config: %w", err)
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	if len(fc.Targets) > 0 {
		cfg.Targets = append([]string{}, fc.Targets...)
	}
	setString(&cfg.InputPath, fc.Input)
	setString(&cfg.OutputPath, fc.Output.Markdown)
	setString(&cfg.JSONPath, fc.Output.JSON)
	setString(&cfg.PDFPath, fc.Output.PDF)
	setString(&cfg.XLSXPath, fc.Output.XLSX)
	setBoolPtr(&cfg.Render, fc.Render)
	setString(&cfg.BrowserURL, fc.Browser.URL)
	if fc.Browser.Viewport != "" {
		vp, err := ParseViewport(fc.Browser.Viewport)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg.Viewport = vp
	}
	setString(&cfg.UserAgent, fc.UserAgent)
	if err := setDuration(&cfg.Timeout, fc.Timeout); err != nil {
		return err
	}
	setString(&cfg.CacheDir, fc.Cache.Dir)
	if err := setDuration(&cfg.CacheMaxAge, fc.Cache.MaxAge); err != nil {
		return err
	}
	setBoolPtr(&cfg.CacheClear, fc.Cache.Clear)
	setBoolPtr(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)
	if fc.Max.Concurrent > 0 {
		cfg.MaxConcurrent = fc.Max.Concurrent
	}
	if fc.Rate.PerHost != nil {
		cfg.RatePerHost = *fc.Rate.PerHost
	}
	setBoolPtr(&cfg.RobotsIgnore, fc.Robots.Ignore)
	setBoolPtr(&cfg.Verbose, fc.Verbose)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBoolPtr(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*dst = d
	return nil
}
