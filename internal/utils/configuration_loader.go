package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	pathutils "github.com/temirov/devtools/internal/utils/path"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	listSeparatorConstant                           = ","
	workingDirectorySearchPathConstant              = "."
	configurationFileMissingMessageConstant         = "configuration file not found"
	configurationFileMissingTemplateConstant        = "%w: %s"
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ErrConfigurationFileMissing indicates that an explicitly requested configuration file does not exist.
var ErrConfigurationFileMissing = errors.New(configurationFileMissingMessageConstant)

// ConfigurationSearchPaths lists the directories searched for a configuration file:
// the working directory first, then applicationDirectoryName inside the user configuration directory.
func ConfigurationSearchPaths(applicationDirectoryName string) []string {
	searchPaths := []string{workingDirectorySearchPathConstant}
	userConfigurationDirectory, userConfigurationDirectoryError := os.UserConfigDir()
	if userConfigurationDirectoryError != nil || len(applicationDirectoryName) == 0 {
		return searchPaths
	}
	return append(searchPaths, filepath.Join(userConfigurationDirectory, applicationDirectoryName))
}

// ConfigurationLoader layers embedded defaults, a configuration file and prefixed environment variables through Viper.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
	pathExpander              *pathutils.PathExpander
}

// ConfigurationLoaderOption customizes a ConfigurationLoader.
type ConfigurationLoaderOption func(*ConfigurationLoader)

// WithConfigurationPathExpander expands "~" and environment references in explicit configuration file paths.
func WithConfigurationPathExpander(expander *pathutils.PathExpander) ConfigurationLoaderOption {
	return func(loader *ConfigurationLoader) {
		loader.pathExpander = expander
	}
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader creates a loader for configurationName files of configurationType found in searchPaths.
// Environment variables named environmentPrefix_SECTION_KEY override file values.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string, options ...ConfigurationLoaderOption) *ConfigurationLoader {
	loader := &ConfigurationLoader{
		configurationName:      configurationName,
		configurationType:      configurationType,
		environmentPrefix:      environmentPrefix,
		searchPaths:            append([]string{}, searchPaths...),
		environmentKeyReplacer: strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant),
	}
	for _, option := range options {
		if option != nil {
			option(loader)
		}
	}
	return loader
}

// SetEmbeddedConfiguration stores configuration merged beneath every file and environment value.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)
	loader.embeddedConfiguration = nil
	if len(configurationData) > 0 {
		loader.embeddedConfiguration = append([]byte{}, configurationData...)
	}
}

// LoadConfiguration decodes the layered configuration into targetConfiguration.
// Precedence from lowest to highest: defaultValues, embedded configuration, configuration file, environment.
// An empty configurationFilePath searches the loader's search paths; a missing searched file is not an error.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if mergeError := loader.mergeEmbeddedConfiguration(viperInstance); mergeError != nil {
		return LoadedConfiguration{}, mergeError
	}

	loader.bindEnvironment(viperInstance)

	if readError := loader.mergeConfigurationFile(viperInstance, configurationFilePath); readError != nil {
		return LoadedConfiguration{}, readError
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncKind(trimStringValue),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listSeparatorConstant),
	)
	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(decodeHook)); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}

func (loader *ConfigurationLoader) mergeEmbeddedConfiguration(viperInstance *viper.Viper) error {
	if len(loader.embeddedConfiguration) == 0 {
		return nil
	}

	embeddedType := loader.configurationType
	if len(loader.embeddedConfigurationType) > 0 {
		embeddedType = loader.embeddedConfigurationType
	}

	viperInstance.SetConfigType(embeddedType)
	defer viperInstance.SetConfigType(loader.configurationType)

	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
		return fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

func (loader *ConfigurationLoader) bindEnvironment(viperInstance *viper.Viper) {
	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	viperInstance.AutomaticEnv()
}

func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, configurationFilePath string) error {
	explicitPath := loader.pathExpander.Expand(strings.TrimSpace(configurationFilePath))
	if len(explicitPath) > 0 {
		viperInstance.SetConfigFile(explicitPath)
	} else {
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return nil
	}

	var notFoundError viper.ConfigFileNotFoundError
	switch {
	case errors.As(readError, &notFoundError):
		return nil
	case len(explicitPath) > 0 && errors.Is(readError, fs.ErrNotExist):
		return fmt.Errorf(configurationFileMissingTemplateConstant, ErrConfigurationFileMissing, explicitPath)
	default:
		return fmt.Errorf(configurationReadErrorTemplateConstant, readError)
	}
}

func trimStringValue(sourceKind reflect.Kind, targetKind reflect.Kind, value any) (any, error) {
	if sourceKind != reflect.String || targetKind != reflect.String {
		return value, nil
	}
	return strings.TrimSpace(reflect.ValueOf(value).String()), nil
}
