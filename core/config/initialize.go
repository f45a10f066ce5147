package config

import (
	"log"
	"os"

	"github.com/spf13/afero"
)

// Initialize creates a configuration directory at path holding the default
// configuration. Existing files are left untouched.
func Initialize(path string, logger *log.Logger) error {
	logger.Printf("Initializing configuration in %q\n", path)
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}

	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), path), logger)
}

// InitializeFs writes the default configuration to the root of fsys if it
// doesn't exist yet.
func InitializeFs(fsys afero.Fs, logger *log.Logger) error {
	exists, err := afero.Exists(fsys, ConfigurationName)
	if err != nil {
		return err
	}
	if exists {
		logger.Printf("- %s already exists, skipping\n", ConfigurationName)
		return nil
	}

	logger.Printf("- writing %s\n", ConfigurationName)
	return afero.WriteFile(fsys, ConfigurationName, defaultConfigData, 0600)
}
