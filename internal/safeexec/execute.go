package safeexec

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

const (
	nilCallableMessageConstant = "safe execute: callable is nil"
)

// ErrNilCallable indicates that a nil function was handed to the wrapper.
var ErrNilCallable = errors.New(nilCallableMessageConstant)

// Options configures the wrapper. The zero value returns structured payloads without trace locations.
type Options struct {
	ReturnJSON   bool   `mapstructure:"json"`
	IncludeTrace bool   `mapstructure:"trace"`
	Name         string `mapstructure:"-"`
}

// Callable is the shape every wrapped function is adapted to.
type Callable func() (any, error)

// Execute invokes callable once inside the fault boundary.
// Only a nil callable fails outward; every failure of the call itself is reported in the reply.
func Execute(callable Callable, options Options) (Reply, error) {
	if callable == nil {
		return Reply{}, ErrNilCallable
	}
	return newTarget(callable, options).run(callable), nil
}

// Wrap adapts a zero-argument function.
func Wrap[Result any](function func() (Result, error), options Options) (func() Reply, error) {
	if function == nil {
		return nil, ErrNilCallable
	}
	wrapped := newTarget(function, options)
	return func() Reply {
		return wrapped.run(func() (any, error) {
			result, callError := function()
			return result, callError
		})
	}, nil
}

// Wrap1 adapts a single-argument function.
func Wrap1[Argument any, Result any](function func(Argument) (Result, error), options Options) (func(Argument) Reply, error) {
	if function == nil {
		return nil, ErrNilCallable
	}
	wrapped := newTarget(function, options)
	return func(argument Argument) Reply {
		return wrapped.run(func() (any, error) {
			result, callError := function(argument)
			return result, callError
		})
	}, nil
}

// Wrap2 adapts a two-argument function.
func Wrap2[First any, Second any, Result any](function func(First, Second) (Result, error), options Options) (func(First, Second) Reply, error) {
	if function == nil {
		return nil, ErrNilCallable
	}
	wrapped := newTarget(function, options)
	return func(first First, second Second) Reply {
		return wrapped.run(func() (any, error) {
			result, callError := function(first, second)
			return result, callError
		})
	}, nil
}

// WrapAction adapts a function that produces no value; its success payload carries NoResultPlaceholder.
func WrapAction(function func() error, options Options) (func() Reply, error) {
	if function == nil {
		return nil, ErrNilCallable
	}
	wrapped := newTarget(function, options)
	return func() Reply {
		return wrapped.run(func() (any, error) {
			return nil, function()
		})
	}, nil
}

// target binds a wrapped function's identity to the options it runs with.
type target struct {
	options     Options
	displayName string
	symbol      string
	declaration location
}

func newTarget(function any, options Options) target {
	symbol, declaration := describeFunction(reflect.ValueOf(function).Pointer())

	displayName := options.Name
	if len(displayName) == 0 {
		displayName = shortFunctionName(symbol)
	}

	return target{
		options:     options,
		displayName: displayName,
		symbol:      symbol,
		declaration: declaration,
	}
}

func (wrapped target) run(call Callable) Reply {
	startTime := time.Now()
	outcome := invoke(call)
	elapsed := elapsedSeconds(time.Since(startTime))

	var payload Payload
	if outcome.failed() {
		payload = Payload{Status: false, Error: wrapped.describeFailure(outcome), ElapsedTime: elapsed}
	} else {
		payload = Payload{
			Status:      true,
			Message:     fmt.Sprintf(successMessageTemplateConstant, wrapped.displayName),
			Result:      normalizeResult(outcome.result),
			ElapsedTime: elapsed,
		}
	}

	if !wrapped.options.ReturnJSON {
		return Reply{Payload: payload}
	}

	encoded, encodeError := encodePayload(payload)
	if encodeError != nil {
		payload = Payload{
			Status:      false,
			Error:       &Failure{Kind: classifyError(encodeError), Message: encodeError.Error()},
			ElapsedTime: elapsed,
		}
		if wrapped.options.IncludeTrace {
			payload.Error.File = wrapped.declaration.file
			payload.Error.Line = wrapped.declaration.line
		}
		encoded, _ = encodePayload(payload)
	}

	return Reply{Payload: payload, JSON: encoded}
}

func (wrapped target) describeFailure(outcome callOutcome) *Failure {
	failure := &Failure{}
	if outcome.panicked {
		failure.Kind, failure.Message = classifyPanic(outcome.panicValue)
	} else {
		failure.Kind, failure.Message = classifyError(outcome.err), outcome.err.Error()
	}

	if wrapped.options.IncludeTrace {
		failureLocation := wrapped.declaration
		if outcome.panicked {
			failureLocation = locateFrame(outcome.frames, wrapped.symbol, wrapped.declaration)
		}
		failure.File = failureLocation.file
		failure.Line = failureLocation.line
	}

	return failure
}

func normalizeResult(result any) any {
	if result == nil {
		return NoResultPlaceholder
	}
	resultValue := reflect.ValueOf(result)
	switch resultValue.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if resultValue.IsNil() {
			return NoResultPlaceholder
		}
	}
	return result
}
