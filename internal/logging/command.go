package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	flagutils "github.com/temirov/devtools/internal/utils/flags"
)

const (
	groupCommandUseConstant              = "logging"
	groupCommandShortDescriptionConstant = "Inspect the logging configuration"
	showCommandUseConstant               = "show"
	showCommandShortDescriptionConstant  = "Print the current logging configuration snapshot"
	flagOutputNameConstant               = "output"
	flagOutputDescriptionConstant        = "Snapshot encoding."
	outputYAMLConstant                   = "yaml"
	outputJSONConstant                   = "json"
	jsonIndentConstant                   = "  "
	unsupportedOutputTemplateConstant    = "unsupported output format %q"
	snapshotEncodeErrorTemplateConstant  = "unable to encode logging snapshot: %w"
	configuratorMissingMessageConstant   = "logging configurator not available"
)

var errConfiguratorMissing = errors.New(configuratorMissingMessageConstant)

// ConfiguratorProvider supplies the configurator whose state is reported.
type ConfiguratorProvider func() *Configurator

// ConfigurationFileProvider reports the configuration file the CLI loaded, if any.
type ConfigurationFileProvider func() string

// CommandBuilder assembles the logging command group.
type CommandBuilder struct {
	ConfiguratorProvider      ConfiguratorProvider
	ConfigurationFileProvider ConfigurationFileProvider
}

type snapshotReport struct {
	Snapshot   `yaml:",inline"`
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

// Build constructs the logging command and its show subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	groupCommand := &cobra.Command{
		Use:   groupCommandUseConstant,
		Short: groupCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
	}

	showCommand := &cobra.Command{
		Use:   showCommandUseConstant,
		Short: showCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runShow,
	}
	showCommand.Flags().String(
		flagOutputNameConstant,
		outputYAMLConstant,
		flagutils.FormatChoiceUsage(outputYAMLConstant, []string{outputYAMLConstant, outputJSONConstant}, flagOutputDescriptionConstant),
	)

	groupCommand.AddCommand(showCommand)
	return groupCommand, nil
}

func (builder *CommandBuilder) runShow(command *cobra.Command, _ []string) error {
	if builder.ConfiguratorProvider == nil {
		return errConfiguratorMissing
	}
	configurator := builder.ConfiguratorProvider()
	if configurator == nil {
		return errConfiguratorMissing
	}

	report := snapshotReport{Snapshot: configurator.Snapshot()}
	if builder.ConfigurationFileProvider != nil {
		report.ConfigFile = builder.ConfigurationFileProvider()
	}

	outputFormat, _ := command.Flags().GetString(flagOutputNameConstant)
	encoded, encodeError := encodeReport(report, strings.ToLower(strings.TrimSpace(outputFormat)))
	if encodeError != nil {
		return encodeError
	}

	_, writeError := command.OutOrStdout().Write(encoded)
	return writeError
}

func encodeReport(report snapshotReport, outputFormat string) ([]byte, error) {
	var (
		encoded     []byte
		encodeError error
	)
	switch outputFormat {
	case outputYAMLConstant:
		encoded, encodeError = yaml.Marshal(report)
	case outputJSONConstant:
		encoded, encodeError = json.MarshalIndent(report, "", jsonIndentConstant)
		encoded = append(encoded, '\n')
	default:
		return nil, fmt.Errorf(unsupportedOutputTemplateConstant, outputFormat)
	}
	if encodeError != nil {
		return nil, fmt.Errorf(snapshotEncodeErrorTemplateConstant, encodeError)
	}
	return encoded, nil
}
