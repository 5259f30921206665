package logging

import (
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	templateTokenTimeConstant    = "{time}"
	templateTokenNameConstant    = "{name}"
	templateTokenLevelConstant   = "{level}"
	templateTokenMessageConstant = "{message}"
	templateTokenCallerConstant  = "{caller}"
	fieldSeparatorConstant       = " "
	lineEndingConstant           = "\n"
	stacktraceKeyConstant        = "stacktrace"
)

var templateBufferPool = buffer.NewPool()

// templateEncoder renders entries through a message template and appends structured fields as JSON.
type templateEncoder struct {
	zapcore.Encoder
	template   string
	dateFormat string
	colorize   bool
}

func newTemplateEncoder(template string, dateFormat string, colorize bool) *templateEncoder {
	fieldEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		StacktraceKey:  stacktraceKeyConstant,
		LineEnding:     lineEndingConstant,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	return &templateEncoder{
		Encoder:    fieldEncoder,
		template:   template,
		dateFormat: dateFormat,
		colorize:   colorize,
	}
}

func (encoder *templateEncoder) Clone() zapcore.Encoder {
	return &templateEncoder{
		Encoder:    encoder.Encoder.Clone(),
		template:   encoder.template,
		dateFormat: encoder.dateFormat,
		colorize:   encoder.colorize,
	}
}

func (encoder *templateEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	fieldBuffer, encodeError := encoder.Encoder.EncodeEntry(zapcore.Entry{Stack: entry.Stack}, fields)
	if encodeError != nil {
		return nil, encodeError
	}
	renderedFields := strings.TrimSuffix(fieldBuffer.String(), lineEndingConstant)
	fieldBuffer.Free()

	callerDescription := ""
	if entry.Caller.Defined {
		callerDescription = entry.Caller.TrimmedPath()
	}

	replacer := strings.NewReplacer(
		templateTokenTimeConstant, entry.Time.Format(encoder.dateFormat),
		templateTokenNameConstant, entry.LoggerName,
		templateTokenLevelConstant, levelDisplayName(entry.Level, encoder.colorize),
		templateTokenMessageConstant, entry.Message,
		templateTokenCallerConstant, callerDescription,
	)

	line := templateBufferPool.Get()
	line.AppendString(replacer.Replace(encoder.template))
	if len(renderedFields) > 0 {
		line.AppendString(fieldSeparatorConstant)
		line.AppendString(renderedFields)
	}
	line.AppendString(lineEndingConstant)

	return line, nil
}
