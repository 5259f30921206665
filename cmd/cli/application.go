package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/devtools/internal/logging"
	"github.com/temirov/devtools/internal/safeexec"
	"github.com/temirov/devtools/internal/utils"
	pathutils "github.com/temirov/devtools/internal/utils/path"
	"github.com/temirov/devtools/internal/version"
)

const (
	applicationNameConstant                 = "devtools"
	applicationShortDescriptionConstant     = "Command-line interface for devtools utilities"
	applicationLongDescriptionConstant      = "devtools bumps manifest versions, runs programs inside a safe-execute wrapper, and reports its logging configuration."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML, JSON, or TOML)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the log message template ({time}, {name}, {level}, {message}, {caller})."
	logDateFormatFlagNameConstant           = "log-date-format"
	logDateFormatFlagUsageConstant          = "Override the log timestamp layout (Go time layout)."
	logFileFlagNameConstant                 = "log-file"
	logFileFlagUsageConstant                = "Also write logs to this file."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	commonLogDateFormatConfigKeyConstant    = commonConfigurationKeyConstant + ".log_date_format"
	commonLogFileConfigKeyConstant          = commonConfigurationKeyConstant + ".log_file"
	toolsConfigurationKeyConstant           = "tools"
	bumpConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".bump"
	safeExecJSONConfigKeyConstant           = toolsConfigurationKeyConstant + ".safe_exec.json"
	safeExecTraceConfigKeyConstant          = toolsConfigurationKeyConstant + ".safe_exec.trace"
	environmentPrefixConstant               = "DEVTOOLS"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFileFieldConstant       = "log_file"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to configure logging: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandDebugMessageConstant         = "devtools CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	cliLoggerNameConstant                   = logging.DefaultNamespace + ".cli"
	bumpLoggerNameConstant                  = logging.DefaultNamespace + ".bump"
	safeExecLoggerNameConstant              = logging.DefaultNamespace + ".safe-exec"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogDateFormat string `mapstructure:"log_date_format"`
	LogFile       string `mapstructure:"log_file"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool.
type ApplicationToolsConfiguration struct {
	Bump     version.CommandConfiguration `mapstructure:"bump"`
	SafeExec safeexec.Options             `mapstructure:"safe_exec"`
}

// ApplicationOption customizes an Application at construction time.
type ApplicationOption func(*applicationSettings)

type applicationSettings struct {
	outputWriter     io.Writer
	diagnosticWriter io.Writer
	lockDirectory    string
	processRunner    utils.ProcessRunner
	searchPaths      []string
}

// WithOutputWriter directs command output away from standard output.
func WithOutputWriter(writer io.Writer) ApplicationOption {
	return func(settings *applicationSettings) {
		settings.outputWriter = writer
	}
}

// WithDiagnosticWriter directs console logs and error reports away from standard error.
func WithDiagnosticWriter(writer io.Writer) ApplicationOption {
	return func(settings *applicationSettings) {
		settings.diagnosticWriter = writer
	}
}

// WithLockDirectory places manifest lock files in directory instead of the system temporary directory.
func WithLockDirectory(directory string) ApplicationOption {
	return func(settings *applicationSettings) {
		settings.lockDirectory = directory
	}
}

// WithProcessRunner replaces the runner used by safe-exec.
func WithProcessRunner(processRunner utils.ProcessRunner) ApplicationOption {
	return func(settings *applicationSettings) {
		settings.processRunner = processRunner
	}
}

// WithConfigurationSearchPaths replaces the directories searched for config.yaml.
func WithConfigurationSearchPaths(searchPaths ...string) ApplicationOption {
	return func(settings *applicationSettings) {
		settings.searchPaths = append([]string{}, searchPaths...)
	}
}

// Application wires the Cobra root command, configuration loader, and logging configurator.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggingConfigurator    *logging.Configurator
	logger                 *zap.Logger
	pathExpander           *pathutils.PathExpander
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	logDateFormatFlagValue string
	logFileFlagValue       string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication(options ...ApplicationOption) *Application {
	settings := applicationSettings{
		outputWriter:     os.Stdout,
		diagnosticWriter: os.Stderr,
		searchPaths:      utils.ConfigurationSearchPaths(applicationNameConstant),
	}
	for _, option := range options {
		if option != nil {
			option(&settings)
		}
	}

	pathExpander := pathutils.NewPathExpander()
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		settings.searchPaths,
		utils.WithConfigurationPathExpander(pathExpander),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggingConfigurator: logging.NewConfigurator(
			logging.DefaultNamespace,
			logging.WithConsoleWriter(settings.diagnosticWriter),
			logging.WithFallbackWriter(settings.diagnosticWriter),
			logging.WithColorizedLevels(isTerminal(settings.diagnosticWriter)),
		),
		logger:       zap.NewNop(),
		pathExpander: pathExpander,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetOut(settings.outputWriter)
	cobraCommand.SetErr(settings.diagnosticWriter)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logDateFormatFlagValue, logDateFormatFlagNameConstant, "", logDateFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFileFlagValue, logFileFlagNameConstant, "", logFileFlagUsageConstant)

	bumpBuilder := version.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.loggingConfigurator.Logger(bumpLoggerNameConstant)
		},
		ConfigurationProvider: func() version.CommandConfiguration {
			return application.configuration.Tools.Bump
		},
		LockDirectory: settings.lockDirectory,
		PathExpander:  application.pathExpander,
	}
	bumpCommand, bumpBuildError := bumpBuilder.Build()
	if bumpBuildError == nil {
		cobraCommand.AddCommand(bumpCommand)
	}

	safeExecBuilder := safeexec.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.loggingConfigurator.Logger(safeExecLoggerNameConstant)
		},
		ConfigurationProvider: func() safeexec.Options {
			return application.configuration.Tools.SafeExec
		},
		ProcessRunner: settings.processRunner,
	}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		safeExecBuilder.WorkingDirectory = workingDirectory
	}
	safeExecCommand, safeExecBuildError := safeExecBuilder.Build()
	if safeExecBuildError == nil {
		cobraCommand.AddCommand(safeExecCommand)
	}

	loggingBuilder := logging.CommandBuilder{
		ConfiguratorProvider: func() *logging.Configurator {
			return application.loggingConfigurator
		},
		ConfigurationFileProvider: func() string {
			return application.configurationMetadata.ConfigFileUsed
		},
	}
	loggingCommand, loggingBuildError := loggingBuilder.Build()
	if loggingBuildError == nil {
		cobraCommand.AddCommand(loggingCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// SetArguments replaces the command-line arguments parsed by Execute.
func (application *Application) SetArguments(arguments []string) {
	application.rootCommand.SetArgs(arguments)
}

// Configuration returns the configuration resolved by the most recent execution.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return errors.Join(executionError, fmt.Errorf(loggerSyncErrorTemplateConstant, syncError))
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:      logging.DefaultLevel,
		commonLogFormatConfigKeyConstant:     logging.DefaultFormat,
		commonLogDateFormatConfigKeyConstant: logging.DefaultDateFormat,
		commonLogFileConfigKeyConstant:       "",
		safeExecJSONConfigKeyConstant:        false,
		safeExecTraceConfigKeyConstant:       false,
	}
	for configurationKey, configurationValue := range version.DefaultConfigurationValues(bumpConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, logDateFormatFlagNameConstant) {
		application.configuration.Common.LogDateFormat = application.logDateFormatFlagValue
	}
	if application.persistentFlagChanged(command, logFileFlagNameConstant) {
		application.configuration.Common.LogFile = application.logFileFlagValue
	}

	configurationError := application.loggingConfigurator.Configure(logging.Options{
		Level:            application.configuration.Common.LogLevel,
		Format:           application.configuration.Common.LogFormat,
		DateFormat:       application.configuration.Common.LogDateFormat,
		FilePath:         application.pathExpander.Expand(application.configuration.Common.LogFile),
		ForceReconfigure: true,
	})
	if configurationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, configurationError)
	}

	application.logger = application.loggingConfigurator.Logger(cliLoggerNameConstant)

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFileFieldConstant, application.configuration.Common.LogFile),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	syncError := ignorableSyncError(application.loggingConfigurator.Sync())
	closeError := application.loggingConfigurator.Close()
	return errors.Join(syncError, closeError)
}

func ignorableSyncError(syncError error) error {
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func isTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
