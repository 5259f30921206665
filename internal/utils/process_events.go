package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	processStartedTemplateConstant          = "Running %s"
	processCompletedTemplateConstant        = "Completed %s"
	processExitFailureTemplateConstant      = "%s failed with exit code %d"
	processExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
)

// ProcessEventObserver receives lifecycle notifications for external program runs.
type ProcessEventObserver interface {
	ProcessStarted(command ProcessCommand)
	ProcessCompleted(command ProcessCommand, result ProcessResult)
	ProcessExecutionFailed(command ProcessCommand, failure error)
}

// ProcessEventLogger renders process lifecycle events through a zap logger.
type ProcessEventLogger struct {
	logger *zap.Logger
}

// NewProcessEventLogger constructs an event logger; a nil logger discards events.
func NewProcessEventLogger(logger *zap.Logger) *ProcessEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessEventLogger{logger: logger}
}

// ProcessStarted logs that command is about to run.
func (eventLogger *ProcessEventLogger) ProcessStarted(command ProcessCommand) {
	eventLogger.logger.Info(fmt.Sprintf(processStartedTemplateConstant, formatProcessLabel(command)))
}

// ProcessCompleted logs the exit of command, as a warning when the exit code is non-zero.
func (eventLogger *ProcessEventLogger) ProcessCompleted(command ProcessCommand, result ProcessResult) {
	if result.ExitCode == 0 {
		eventLogger.logger.Info(fmt.Sprintf(processCompletedTemplateConstant, formatProcessLabel(command)))
		return
	}

	message := fmt.Sprintf(processExitFailureTemplateConstant, formatProcessLabel(command), result.ExitCode)
	if trimmedStandardError := strings.TrimSpace(result.StandardError); len(trimmedStandardError) > 0 {
		message += fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
	}
	eventLogger.logger.Warn(message)
}

// ProcessExecutionFailed logs a failure to launch or wait for command.
func (eventLogger *ProcessEventLogger) ProcessExecutionFailed(command ProcessCommand, failure error) {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	eventLogger.logger.Warn(fmt.Sprintf(processExecutionFailureTemplateConstant, formatProcessLabel(command), failureMessage))
}

func formatProcessLabel(command ProcessCommand) string {
	label := command.String()
	if trimmedWorkingDirectory := strings.TrimSpace(command.WorkingDirectory); len(trimmedWorkingDirectory) > 0 {
		label += fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
	}
	return label
}
