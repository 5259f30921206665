package safeexec

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

const (
	runtimeErrorKindConstant      = "runtime.Error"
	panicKindConstant             = "panic"
	pointerTypePrefixConstant     = "*"
	methodValueSuffixConstant     = "-fm"
	runtimePackagePrefixConstant  = "runtime."
	packagePathSeparatorConstant  = "/"
	symbolSeparatorConstant       = "."
	maximumCapturedFramesConstant = 64
)

var packageSymbolPrefix = reflect.TypeOf(Options{}).PkgPath() + symbolSeparatorConstant

// KindProvider lets errors name their own failure kind.
type KindProvider interface {
	Kind() string
}

type location struct {
	file string
	line int
}

type callOutcome struct {
	result     any
	err        error
	panicked   bool
	panicValue any
	frames     []runtime.Frame
}

func (outcome callOutcome) failed() bool {
	return outcome.panicked || outcome.err != nil
}

func invoke(call Callable) (outcome callOutcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = callOutcome{panicked: true, panicValue: recovered, frames: capturePanicFrames()}
		}
	}()

	outcome.result, outcome.err = call()
	return outcome
}

func capturePanicFrames() []runtime.Frame {
	programCounters := make([]uintptr, maximumCapturedFramesConstant)
	capturedCount := runtime.Callers(1, programCounters)
	frameIterator := runtime.CallersFrames(programCounters[:capturedCount])

	frames := make([]runtime.Frame, 0, capturedCount)
	for {
		frame, more := frameIterator.Next()
		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}

// locateFrame finds the innermost frame of symbol among the frames unwound by a panic.
// When symbol never appears it falls back to the outermost unwound frame, then to fallback.
func locateFrame(frames []runtime.Frame, symbol string, fallback location) location {
	unwoundFrames := make([]runtime.Frame, 0, len(frames))
	unwindingStarted := false
	for _, frame := range frames {
		internalFrame := strings.HasPrefix(frame.Function, packageSymbolPrefix)
		runtimeFrame := strings.HasPrefix(frame.Function, runtimePackagePrefixConstant)
		if !unwindingStarted {
			if internalFrame || runtimeFrame {
				continue
			}
			unwindingStarted = true
		}
		if internalFrame {
			break
		}
		if !runtimeFrame {
			unwoundFrames = append(unwoundFrames, frame)
		}
	}

	for _, frame := range unwoundFrames {
		if frame.Function == symbol {
			return location{file: filepath.Base(frame.File), line: frame.Line}
		}
	}

	if len(unwoundFrames) > 0 {
		outermostFrame := unwoundFrames[len(unwoundFrames)-1]
		return location{file: filepath.Base(outermostFrame.File), line: outermostFrame.Line}
	}

	return fallback
}

func describeFunction(programCounter uintptr) (string, location) {
	function := runtime.FuncForPC(programCounter)
	if function == nil {
		return "", location{}
	}
	file, line := function.FileLine(function.Entry())
	return strings.TrimSuffix(function.Name(), methodValueSuffixConstant), location{file: filepath.Base(file), line: line}
}

func shortFunctionName(symbol string) string {
	shortName := symbol
	if separatorIndex := strings.LastIndex(shortName, packagePathSeparatorConstant); separatorIndex >= 0 {
		shortName = shortName[separatorIndex+1:]
	}
	if separatorIndex := strings.Index(shortName, symbolSeparatorConstant); separatorIndex >= 0 {
		shortName = shortName[separatorIndex+1:]
	}
	return shortName
}

func classifyError(err error) string {
	var kindProvider KindProvider
	if errors.As(err, &kindProvider) {
		return kindProvider.Kind()
	}
	var runtimeError runtime.Error
	if errors.As(err, &runtimeError) {
		return runtimeErrorKindConstant
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), pointerTypePrefixConstant)
}

func classifyPanic(panicValue any) (string, string) {
	if panicError, isError := panicValue.(error); isError {
		return classifyError(panicError), panicError.Error()
	}
	return panicKindConstant, fmt.Sprint(panicValue)
}
