package safeexec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/devtools/internal/utils"
)

const (
	commandUseConstant                  = "safe-exec [flags] -- <program> [arguments...]"
	commandShortDescriptionConstant     = "Run a program inside the safe-execute wrapper and print its payload"
	commandLongDescriptionConstant      = "safe-exec runs a program, times it, and reports a success or failure payload as YAML, or JSON with --json. A non-zero exit is reported as an ExitError failure."
	programMissingMessageConstant       = "safe-exec requires a program to run"
	wrappedCommandFailedMessageConstant = "wrapped command failed"
	payloadEncodeErrorTemplateConstant  = "unable to encode payload: %w"
	exitErrorKindConstant               = "ExitError"
	exitErrorMessageTemplateConstant    = "%s exited with status %d"
	exitErrorDetailTemplateConstant     = "%s: %s"
	flagJSONNameConstant                = "json"
	flagJSONDescriptionConstant         = "Print the payload as JSON"
	flagTraceNameConstant               = "trace"
	flagTraceDescriptionConstant        = "Include the failure location in the payload"
	executionCompletedMessageConstant   = "safe-exec completed"
	logFieldCommandConstant             = "command"
	logFieldStatusConstant              = "status"
	logFieldElapsedConstant             = "elapsed_seconds"
	logFieldFailureKindConstant         = "failure_kind"
)

var (
	errProgramMissing = errors.New(programMissingMessageConstant)
	// ErrWrappedCommandFailed signals that the payload printed by safe-exec reports a failure.
	ErrWrappedCommandFailed = errors.New(wrappedCommandFailedMessageConstant)
)

// ExitError reports a program that ran to completion with a non-zero exit status.
type ExitError struct {
	Command       string
	ExitCode      int
	StandardError string
}

func (exitError *ExitError) Error() string {
	message := fmt.Sprintf(exitErrorMessageTemplateConstant, exitError.Command, exitError.ExitCode)
	if detail := strings.TrimSpace(exitError.StandardError); len(detail) > 0 {
		return fmt.Sprintf(exitErrorDetailTemplateConstant, message, detail)
	}
	return message
}

// Kind names the failure kind reported in payloads.
func (exitError *ExitError) Kind() string {
	return exitErrorKindConstant
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies default wrapper options for the safe-exec command.
type ConfigurationProvider func() Options

// CommandBuilder assembles the Cobra command that runs programs through the wrapper.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	ProcessRunner         utils.ProcessRunner
	WorkingDirectory      string
}

// Build constructs the safe-exec command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().SetInterspersed(false)
	command.Flags().Bool(flagJSONNameConstant, false, flagJSONDescriptionConstant)
	command.Flags().Bool(flagTraceNameConstant, false, flagTraceDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return errProgramMissing
	}

	processCommand := utils.ProcessCommand{
		Program:          arguments[0],
		Arguments:        append([]string{}, arguments[1:]...),
		WorkingDirectory: builder.WorkingDirectory,
	}

	options := builder.parseOptions(command)
	options.Name = processCommand.String()

	logger := builder.resolveLogger()
	reply, wrapError := builder.execute(command.Context(), logger, processCommand, options)
	if wrapError != nil {
		return wrapError
	}

	logFields := []zap.Field{
		zap.String(logFieldCommandConstant, options.Name),
		zap.Bool(logFieldStatusConstant, reply.Payload.Status),
		zap.Float64(logFieldElapsedConstant, reply.Payload.ElapsedTime),
	}
	if reply.Payload.Error != nil {
		logFields = append(logFields, zap.String(logFieldFailureKindConstant, reply.Payload.Error.Kind))
	}
	logger.Debug(executionCompletedMessageConstant, logFields...)

	if printError := printReply(command, reply); printError != nil {
		return printError
	}

	if !reply.Payload.Succeeded() {
		return ErrWrappedCommandFailed
	}
	return nil
}

func (builder *CommandBuilder) execute(executionContext context.Context, logger *zap.Logger, processCommand utils.ProcessCommand, options Options) (Reply, error) {
	executor := utils.NewObservedProcessExecutor(builder.resolveProcessRunner(), utils.NewProcessEventLogger(logger))

	runProcess := func(candidate utils.ProcessCommand) (utils.ProcessResult, error) {
		result, executeError := executor.Execute(executionContext, candidate)
		if executeError != nil {
			return utils.ProcessResult{}, executeError
		}
		if result.ExitCode != 0 {
			return result, &ExitError{Command: candidate.String(), ExitCode: result.ExitCode, StandardError: result.StandardError}
		}
		return result, nil
	}

	wrapped, wrapError := Wrap1(runProcess, options)
	if wrapError != nil {
		return Reply{}, wrapError
	}
	return wrapped(processCommand), nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) Options {
	options := Options{}
	if builder.ConfigurationProvider != nil {
		options = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(flagJSONNameConstant) {
		options.ReturnJSON, _ = command.Flags().GetBool(flagJSONNameConstant)
	}
	if command.Flags().Changed(flagTraceNameConstant) {
		options.IncludeTrace, _ = command.Flags().GetBool(flagTraceNameConstant)
	}

	return options
}

func printReply(command *cobra.Command, reply Reply) error {
	if reply.IsJSON() {
		_, printError := fmt.Fprintln(command.OutOrStdout(), reply.String())
		return printError
	}

	encoded, encodeError := yaml.Marshal(reply.Payload)
	if encodeError != nil {
		return fmt.Errorf(payloadEncodeErrorTemplateConstant, encodeError)
	}
	_, printError := command.OutOrStdout().Write(encoded)
	return printError
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

func (builder *CommandBuilder) resolveProcessRunner() utils.ProcessRunner {
	if builder.ProcessRunner != nil {
		return builder.ProcessRunner
	}
	return utils.NewOSProcessRunner()
}
