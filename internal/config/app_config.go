// Package config loads layered application configuration from global and
// local files. The engine only ever consumes the parsed values; the on-disk
// format belongs to this package alone.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/promptree/promptree/internal/utils"
)

const (
	// ConfigFileName is the local configuration file searched for in the
	// working directory.
	ConfigFileName = ".promptree.yaml"
	// globalConfigRelativePath locates the global configuration below the
	// user's home directory.
	globalConfigRelativePath = ".config/promptree/config.yaml"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the merged configuration consumed by the CLI.
// Pointer fields distinguish an unset value from an explicit false or zero.
type ApplicationConfiguration struct {
	Scan      ScanConfiguration   `mapstructure:"scan"`
	Output    OutputConfiguration `mapstructure:"output"`
	Tokens    TokenConfiguration  `mapstructure:"tokens"`
	Clipboard *bool               `mapstructure:"clipboard"`
}

// ScanConfiguration configures the directory scanner.
type ScanConfiguration struct {
	Ignore            []string `mapstructure:"ignore"`
	UseDefaultIgnores *bool    `mapstructure:"use_default_ignores"`
	MaxFileSizeBytes  *int64   `mapstructure:"max_file_size_bytes"`
	Concurrency       *int     `mapstructure:"concurrency"`
	CaseInsensitive   *bool    `mapstructure:"case_insensitive"`
	IncludeSymlinks   *bool    `mapstructure:"include_symlinks"`
}

// OutputConfiguration configures the assembled document.
type OutputConfiguration struct {
	LineCounts  *bool `mapstructure:"line_counts"`
	Summaries   *bool `mapstructure:"summaries"`
	ShowOmitted *bool `mapstructure:"show_omitted"`
	TreeOnly    *bool `mapstructure:"tree_only"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// LoadApplicationConfiguration loads configuration from the global file and
// the working directory's local file, with local values overriding global.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, filepath.FromSlash(globalConfigRelativePath))
		globalConfiguration, loadError := loadConfigurationFromPath(globalPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfiguration)
	}

	localPath, resolveError := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return ApplicationConfiguration{}, resolveError
	}
	if localPath != "" {
		localConfiguration, loadError := loadConfigurationFromPath(localPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(localConfiguration)
	}

	merged.Scan.Ignore = utils.DeduplicatePatterns(merged.Scan.Ignore)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolutePath, absoluteError := filepath.Abs(explicitPath)
			if absoluteError != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, absoluteError)
			}
			return absolutePath, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	pathInformation, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if pathInformation.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readError)
	}
	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeError)
	}
	return configuration, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (configuration ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := configuration
	result.Scan = result.Scan.merge(override.Scan)
	result.Output = result.Output.merge(override.Output)
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (configuration ScanConfiguration) merge(override ScanConfiguration) ScanConfiguration {
	result := configuration
	if len(override.Ignore) > 0 {
		result.Ignore = append([]string{}, utils.DeduplicatePatterns(override.Ignore)...)
	}
	if override.UseDefaultIgnores != nil {
		result.UseDefaultIgnores = cloneBool(override.UseDefaultIgnores)
	}
	if override.MaxFileSizeBytes != nil {
		result.MaxFileSizeBytes = cloneInt64(override.MaxFileSizeBytes)
	}
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.CaseInsensitive != nil {
		result.CaseInsensitive = cloneBool(override.CaseInsensitive)
	}
	if override.IncludeSymlinks != nil {
		result.IncludeSymlinks = cloneBool(override.IncludeSymlinks)
	}
	return result
}

func (configuration OutputConfiguration) merge(override OutputConfiguration) OutputConfiguration {
	result := configuration
	if override.LineCounts != nil {
		result.LineCounts = cloneBool(override.LineCounts)
	}
	if override.Summaries != nil {
		result.Summaries = cloneBool(override.Summaries)
	}
	if override.ShowOmitted != nil {
		result.ShowOmitted = cloneBool(override.ShowOmitted)
	}
	if override.TreeOnly != nil {
		result.TreeOnly = cloneBool(override.TreeOnly)
	}
	return result
}

func (configuration TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := configuration
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
