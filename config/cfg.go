package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	SourcesConfig struct {
		BibJSON string `yaml:"bibjson"`
		BibTeX  string `yaml:"bibtex"`
		// IANA name, empty means detect
		BibTeXCharset string        `yaml:"bibtex_charset"`
		Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
		UserAgent     string        `yaml:"user_agent"`
	}

	RenderConfig struct {
		ContainerID     string   `yaml:"container_id" validate:"required"`
		DocumentTitle   string   `yaml:"document_title"`
		HiddenClass     string   `yaml:"hidden_class" validate:"required"`
		EntryClass      string   `yaml:"entry_class" validate:"required"`
		IdentifierField string   `yaml:"identifier_field" validate:"required"`
		FieldOrder      []string `yaml:"field_order" validate:"dive,required"`
		// Templates define additional field renderers by name, they may
		// also replace built in ones.
		Templates             map[string]string `yaml:"templates" validate:"dive,keys,required,endkeys,required"`
		CrossCheck            bool              `yaml:"cross_check"`
		Duplicates            DuplicatePolicy   `yaml:"duplicates"`
		Sort                  SortKey           `yaml:"sort"`
		CollationLanguage     string            `yaml:"collation_language" validate:"omitempty,bcp47_language_tag"`
		EmbedBibTeX           bool              `yaml:"embed_bibtex"`
		StylesheetPath        string            `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string            `yaml:"output_name_template"`
		FileNameTransliterate bool              `yaml:"file_name_transliterate"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Sources   SourcesConfig  `yaml:"sources"`
		Render    RenderConfig   `yaml:"render"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		if !cfg.Render.Duplicates.IsValid() {
			return nil, fmt.Errorf("invalid duplicates policy %q", cfg.Render.Duplicates)
		}
		if !cfg.Render.Sort.IsValid() {
			return nil, fmt.Errorf("invalid sort key %q", cfg.Render.Sort)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
