package version

import "strings"

const (
	// DefaultManifestPath is the manifest bumped when neither a flag nor configuration names one.
	DefaultManifestPath = "pyproject.toml"

	manifestConfigurationKeyConstant  = "manifest"
	kindConfigurationKeyConstant      = "kind"
	dryRunConfigurationKeyConstant    = "dry_run"
	configurationKeySeparatorConstant = "."
)

// CommandConfiguration captures configuration values for the bump command.
type CommandConfiguration struct {
	ManifestPath string `mapstructure:"manifest"`
	Kind         string `mapstructure:"kind"`
	DryRun       bool   `mapstructure:"dry_run"`
}

// DefaultCommandConfiguration provides baseline configuration values for the bump command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		ManifestPath: DefaultManifestPath,
		Kind:         string(BumpKindPatch),
		DryRun:       false,
	}
}

// DefaultConfigurationValues lists the defaults keyed beneath prefix for registration with a configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + configurationKeySeparatorConstant + manifestConfigurationKeyConstant: defaults.ManifestPath,
		prefix + configurationKeySeparatorConstant + kindConfigurationKeyConstant:     defaults.Kind,
		prefix + configurationKeySeparatorConstant + dryRunConfigurationKeyConstant:   defaults.DryRun,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.ManifestPath = strings.TrimSpace(configuration.ManifestPath)
	if len(sanitized.ManifestPath) == 0 {
		sanitized.ManifestPath = DefaultManifestPath
	}
	sanitized.Kind = string(ParseBumpKind(configuration.Kind))
	return sanitized
}
