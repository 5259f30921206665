package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	environmentAssignmentTemplateConstant     = "%s=%s"
	programNotProvidedMessageConstant         = "program not provided"
	processRunnerNotConfiguredMessageConstant = "process runner not configured"
)

var (
	// ErrProgramNotProvided indicates that a ProcessCommand carried no program name.
	ErrProgramNotProvided = errors.New(programNotProvidedMessageConstant)
	// ErrProcessRunnerNotConfigured indicates that a ProcessExecutor has no runner.
	ErrProcessRunnerNotConfigured = errors.New(processRunnerNotConfiguredMessageConstant)
)

// ProcessCommand describes a single external program invocation.
type ProcessCommand struct {
	Program              string
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// String renders the command line for diagnostics.
func (command ProcessCommand) String() string {
	return strings.TrimSpace(strings.Join(append([]string{command.Program}, command.Arguments...), " "))
}

// ProcessResult captures the observable results of running a program.
type ProcessResult struct {
	StandardOutput string `json:"stdout" yaml:"stdout"`
	StandardError  string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	ExitCode       int    `json:"exit_code" yaml:"exit_code"`
}

// ProcessRunner represents the ability to run external programs.
// A non-zero exit is reported through ProcessResult.ExitCode, not as an error.
type ProcessRunner interface {
	Run(executionContext context.Context, command ProcessCommand) (ProcessResult, error)
}

// ProcessExecutor validates commands before handing them to a ProcessRunner and reports lifecycle events.
type ProcessExecutor struct {
	processRunner ProcessRunner
	observer      ProcessEventObserver
}

// NewProcessExecutor builds a ProcessExecutor around the provided runner.
func NewProcessExecutor(processRunner ProcessRunner) *ProcessExecutor {
	return &ProcessExecutor{processRunner: processRunner}
}

// NewObservedProcessExecutor builds a ProcessExecutor that notifies observer around every run.
func NewObservedProcessExecutor(processRunner ProcessRunner, observer ProcessEventObserver) *ProcessExecutor {
	return &ProcessExecutor{processRunner: processRunner, observer: observer}
}

// Execute runs command using the configured runner.
func (executor *ProcessExecutor) Execute(executionContext context.Context, command ProcessCommand) (ProcessResult, error) {
	if executor == nil || executor.processRunner == nil {
		return ProcessResult{}, ErrProcessRunnerNotConfigured
	}
	if len(strings.TrimSpace(command.Program)) == 0 {
		return ProcessResult{}, ErrProgramNotProvided
	}

	if executor.observer != nil {
		executor.observer.ProcessStarted(command)
	}

	result, runError := executor.processRunner.Run(executionContext, command)
	if executor.observer != nil {
		if runError != nil {
			executor.observer.ProcessExecutionFailed(command, runError)
		} else {
			executor.observer.ProcessCompleted(command, result)
		}
	}

	return result, runError
}

// OSProcessRunner executes programs using os/exec.
type OSProcessRunner struct{}

// NewOSProcessRunner creates a runner backed by os/exec.
func NewOSProcessRunner() *OSProcessRunner {
	return &OSProcessRunner{}
}

// Run executes the command and collects its output streams.
func (runner *OSProcessRunner) Run(executionContext context.Context, command ProcessCommand) (ProcessResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	commandArguments := append([]string{}, command.Arguments...)
	executable := exec.CommandContext(executionContext, command.Program, commandArguments...)

	if len(command.WorkingDirectory) > 0 {
		executable.Dir = command.WorkingDirectory
	}

	if len(command.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range command.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	if len(command.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.StandardInput)
	}

	runError := executable.Run()
	result := ProcessResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		return ProcessResult{}, runError
	}

	return result, nil
}
