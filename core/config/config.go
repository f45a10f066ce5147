package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	EventLogName      = "events.log"
	HistoryName       = "history"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs
	// configurationDir is the on-disk directory backing configFs, empty when
	// the configuration isn't stored on disk.
	configurationDir string

	Prompt      string `json:"prompt" validate:"required"`
	MaxJobs     int    `json:"max_jobs" validate:"gte=1,lte=1024"`
	Color       string `json:"color" validate:"oneof=always auto never"`
	HistorySize int    `json:"history_size" validate:"gte=0"`
	EventLog    bool   `json:"event_log"`
	DefaultPath string `json:"default_path" validate:"required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewMemMapFs()
	}
	return c.configFs
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(EventLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(EventLogName, os.O_RDONLY, 0600)
}

// HistoryPath returns the path of the interactive history file, or the empty
// string if history shouldn't be persisted.
func (c *Configuration) HistoryPath() string {
	if c.configurationDir == "" || c.HistorySize == 0 {
		return ""
	}
	return filepath.Join(c.configurationDir, HistoryName)
}

// Dir returns the configuration directory, empty for the built-in defaults.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

// Default returns the built-in configuration, backed by an in-memory
// filesystem so nothing is written to disk.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	out.configFs = afero.NewMemMapFs()
	return &out
}
