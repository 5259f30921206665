package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	flagutils "github.com/temirov/devtools/internal/utils/flags"
	pathutils "github.com/temirov/devtools/internal/utils/path"
)

const (
	commandUseConstant                    = "bump [major|minor|patch]"
	commandShortDescriptionConstant       = "Increment the version recorded in a project manifest"
	commandLongDescriptionConstant        = "bump reads version = \"X.Y.Z\" from a manifest, increments one segment, resets the lower segments, and rewrites the manifest."
	commandExecutionErrorTemplateConstant = "version bump failed: %w"
	tooManyArgumentsMessageConstant       = "bump accepts at most one segment argument"
	flagManifestNameConstant              = "manifest"
	flagManifestDescriptionConstant       = "Path to the manifest carrying the version"
	flagDryRunNameConstant                = "dry-run"
	flagDryRunDescriptionConstant         = "Compute the next version without rewriting the manifest"
	kindUsageDescriptionConstant          = "Segment to increment; unrecognized values increment patch."
	bumpedOutputTemplateConstant          = "Version bumped -> %s\n"
	previewOutputTemplateConstant         = "Version would be bumped -> %s\n"
)

var errTooManyArguments = errors.New(tooManyArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies configuration values for the bump command.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the Cobra command for version bumps.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	LockDirectory         string
	PathExpander          *pathutils.PathExpander
}

// Build constructs the bump command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	kindNames := make([]string, 0, len(BumpKinds()))
	for _, kind := range BumpKinds() {
		kindNames = append(kindNames, string(kind))
	}

	command := &cobra.Command{
		Use:       commandUseConstant,
		Short:     commandShortDescriptionConstant,
		Long:      commandLongDescriptionConstant + "\n\nSegment: " + flagutils.FormatChoiceUsage(BumpKindPatch, BumpKinds(), kindUsageDescriptionConstant),
		ValidArgs: kindNames,
		RunE:      builder.run,
	}

	command.Flags().String(flagManifestNameConstant, "", flagManifestDescriptionConstant)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 1 {
		return errTooManyArguments
	}

	options := builder.parseOptions(command, arguments)

	bumper, bumperError := NewBumperWithLockDirectory(builder.resolveLogger(), builder.resolveLockDirectory())
	if bumperError != nil {
		return bumperError
	}

	result, bumpError := bumper.Bump(command.Context(), options)
	if bumpError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, bumpError)
	}

	outputTemplate := bumpedOutputTemplateConstant
	if result.DryRun {
		outputTemplate = previewOutputTemplateConstant
	}
	_, printError := fmt.Fprintf(command.OutOrStdout(), outputTemplate, result.Current)
	return printError
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) BumpOptions {
	configuration := builder.resolveConfiguration()

	kindValue := configuration.Kind
	if len(arguments) == 1 {
		kindValue = arguments[0]
	}

	manifestPath := configuration.ManifestPath
	if command.Flags().Changed(flagManifestNameConstant) {
		manifestFlagValue, _ := command.Flags().GetString(flagManifestNameConstant)
		if trimmed := strings.TrimSpace(manifestFlagValue); len(trimmed) > 0 {
			manifestPath = trimmed
		}
	}

	dryRun := configuration.DryRun
	if command.Flags().Changed(flagDryRunNameConstant) {
		dryRun, _ = command.Flags().GetBool(flagDryRunNameConstant)
	}

	return BumpOptions{
		ManifestPath: builder.resolvePathExpander().Expand(manifestPath),
		Kind:         ParseBumpKind(kindValue),
		DryRun:       dryRun,
	}
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration().sanitize()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveLockDirectory() string {
	if len(builder.LockDirectory) > 0 {
		return builder.LockDirectory
	}
	return defaultLockDirectory()
}

func (builder *CommandBuilder) resolvePathExpander() *pathutils.PathExpander {
	if builder.PathExpander != nil {
		return builder.PathExpander
	}
	return pathutils.NewPathExpander()
}
