package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/devtools/internal/utils"
)

const (
	// DefaultFormat is the message template applied when none is configured.
	DefaultFormat = "{time} | {name} | {level} | {message}"
	// DefaultDateFormat is the timestamp layout applied when none is configured.
	DefaultDateFormat = "2006-01-02 15:04:05"
	// DefaultLevel is the severity applied when none is configured.
	DefaultLevel = LevelInfo

	namespaceSeparatorConstant              = "."
	logDirectoryPermissionsConstant         = 0o755
	logFilePermissionsConstant              = 0o644
	logDirectoryCreateErrorTemplateConstant = "unable to create log directory %s: %w"
	logFileOpenErrorTemplateConstant        = "unable to open log file %s: %w"
	logFileCloseErrorTemplateConstant       = "unable to close log file %s: %w"
)

type sinkKind int

const (
	sinkKindConsole sinkKind = iota
	sinkKindFile
)

type sink struct {
	kind   sinkKind
	target string
	core   zapcore.Core
	file   *os.File
}

func (attachedSink *sink) close() error {
	if attachedSink.file == nil {
		return nil
	}
	syncError := attachedSink.file.Sync()
	closeError := attachedSink.file.Close()
	if closeError != nil {
		return multierr.Append(syncError, fmt.Errorf(logFileCloseErrorTemplateConstant, attachedSink.target, closeError))
	}
	return nil
}

// Options describes a logging configuration request.
type Options struct {
	Level            string `mapstructure:"level"`
	Format           string `mapstructure:"format"`
	DateFormat       string `mapstructure:"date_format"`
	FilePath         string `mapstructure:"file"`
	SuppressConsole  bool   `mapstructure:"suppress_console"`
	ForceReconfigure bool   `mapstructure:"force_reconfigure"`
}

// Snapshot is a read-only view of the logging configuration state.
type Snapshot struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	DateFormat string `json:"date_format" yaml:"date_format"`
	Configured bool   `json:"configured" yaml:"configured"`
	SinkCount  int    `json:"handlers_count" yaml:"handlers_count"`
}

type settings struct {
	level      string
	format     string
	dateFormat string
}

// ConfiguratorOption customizes a Configurator at construction time.
type ConfiguratorOption func(*Configurator)

// WithConsoleWriter directs the console sink to writer instead of standard output.
func WithConsoleWriter(writer io.Writer) ConfiguratorOption {
	return func(configurator *Configurator) {
		if writer != nil {
			configurator.consoleWriter = zapcore.Lock(zapcore.AddSync(utils.NewFlushingWriter(writer)))
		}
	}
}

// WithFallbackWriter directs loggers outside the namespace to writer instead of standard error.
func WithFallbackWriter(writer io.Writer) ConfiguratorOption {
	return func(configurator *Configurator) {
		if writer != nil {
			configurator.fallbackWriter = zapcore.Lock(zapcore.AddSync(writer))
		}
	}
}

// WithColorizedLevels renders level names with ANSI colors.
func WithColorizedLevels(colorize bool) ConfiguratorOption {
	return func(configurator *Configurator) {
		configurator.colorize = colorize
	}
}

// Configurator owns the sinks and level of a logger namespace.
type Configurator struct {
	mutex          sync.RWMutex
	namespace      string
	consoleWriter  zapcore.WriteSyncer
	fallbackWriter zapcore.WriteSyncer
	colorize       bool
	level          zap.AtomicLevel
	settings       settings
	sinks          []*sink
	configured     bool
	loggers        map[string]*zap.Logger
	fallbackCore   zapcore.Core
}

// NewConfigurator constructs an unconfigured Configurator for namespace.
func NewConfigurator(namespace string, options ...ConfiguratorOption) *Configurator {
	configurator := &Configurator{
		namespace:      strings.TrimSpace(namespace),
		consoleWriter:  zapcore.Lock(zapcore.AddSync(utils.NewFlushingWriter(os.Stdout))),
		fallbackWriter: zapcore.Lock(os.Stderr),
		level:          zap.NewAtomicLevelAt(zapcore.InfoLevel),
		settings:       defaultSettings(),
		loggers:        map[string]*zap.Logger{},
	}

	for _, option := range options {
		if option != nil {
			option(configurator)
		}
	}

	configurator.fallbackCore = zapcore.NewCore(
		newTemplateEncoder(DefaultFormat, DefaultDateFormat, false),
		configurator.fallbackWriter,
		zapcore.WarnLevel,
	)

	return configurator
}

// Namespace reports the logger namespace owned by the configurator.
func (configurator *Configurator) Namespace() string {
	return configurator.namespace
}

// Logger returns the logger registered under name, creating it when absent.
// Requesting a logger inside the namespace configures defaults when nothing has been configured yet.
func (configurator *Configurator) Logger(name string) *zap.Logger {
	configurator.mutex.Lock()
	defer configurator.mutex.Unlock()

	insideNamespace := configurator.contains(name)
	if insideNamespace && !configurator.configured {
		// Default options attach only the console sink, which cannot fail.
		_ = configurator.configureLocked(Options{})
	}

	if existingLogger, exists := configurator.loggers[name]; exists {
		return existingLogger
	}

	var logger *zap.Logger
	if insideNamespace {
		logger = zap.New(&namespaceCore{configurator: configurator}, zap.AddCaller()).Named(name)
	} else {
		logger = zap.New(configurator.fallbackCore).Named(name)
	}
	configurator.loggers[name] = logger

	return logger
}

// Configure applies options unless the configurator is already configured and no reconfiguration is forced.
func (configurator *Configurator) Configure(options Options) error {
	configurator.mutex.Lock()
	defer configurator.mutex.Unlock()

	if configurator.configured && !options.ForceReconfigure {
		return nil
	}

	return configurator.configureLocked(options)
}

// Snapshot reports the current configuration state.
func (configurator *Configurator) Snapshot() Snapshot {
	configurator.mutex.RLock()
	defer configurator.mutex.RUnlock()

	return Snapshot{
		Level:      configurator.settings.level,
		Format:     configurator.settings.format,
		DateFormat: configurator.settings.dateFormat,
		Configured: configurator.configured,
		SinkCount:  len(configurator.sinks),
	}
}

// Sync flushes every attached sink.
func (configurator *Configurator) Sync() error {
	configurator.mutex.RLock()
	defer configurator.mutex.RUnlock()

	var syncError error
	for _, attachedSink := range configurator.sinks {
		syncError = multierr.Append(syncError, attachedSink.core.Sync())
	}
	return syncError
}

// Close detaches every sink, closing log files, and returns the configurator to the unconfigured state.
func (configurator *Configurator) Close() error {
	configurator.mutex.Lock()
	defer configurator.mutex.Unlock()

	closeError := configurator.detachSinksLocked()
	configurator.configured = false
	return closeError
}

func (configurator *Configurator) configureLocked(options Options) error {
	requestedSettings, zapLevel, resolveError := resolveSettings(options)
	if resolveError != nil {
		return resolveError
	}

	if options.ForceReconfigure {
		if detachError := configurator.detachSinksLocked(); detachError != nil {
			return detachError
		}
		configurator.configured = false
	}

	encoder := newTemplateEncoder(requestedSettings.format, requestedSettings.dateFormat, configurator.colorize)
	attachedSinks := append([]*sink{}, configurator.sinks...)
	openedSinks := make([]*sink, 0, 2)

	if !options.SuppressConsole && !hasSink(attachedSinks, sinkKindConsole, "") {
		consoleSink := &sink{
			kind: sinkKindConsole,
			core: zapcore.NewCore(encoder, configurator.consoleWriter, zapcore.DebugLevel),
		}
		attachedSinks = append(attachedSinks, consoleSink)
		openedSinks = append(openedSinks, consoleSink)
	}

	if filePath := strings.TrimSpace(options.FilePath); len(filePath) > 0 {
		cleanedPath := filepath.Clean(filePath)
		if !hasSink(attachedSinks, sinkKindFile, cleanedPath) {
			fileSink, openError := openFileSink(cleanedPath, encoder)
			if openError != nil {
				return multierr.Append(openError, closeSinks(openedSinks))
			}
			attachedSinks = append(attachedSinks, fileSink)
		}
	}

	configurator.sinks = attachedSinks
	configurator.settings = requestedSettings
	configurator.level.SetLevel(zapLevel)
	configurator.configured = true

	return nil
}

func (configurator *Configurator) detachSinksLocked() error {
	closeError := closeSinks(configurator.sinks)
	configurator.sinks = nil
	return closeError
}

func (configurator *Configurator) contains(name string) bool {
	if len(configurator.namespace) == 0 {
		return false
	}
	return name == configurator.namespace || strings.HasPrefix(name, configurator.namespace+namespaceSeparatorConstant)
}

func defaultSettings() settings {
	return settings{level: DefaultLevel, format: DefaultFormat, dateFormat: DefaultDateFormat}
}

func resolveSettings(options Options) (settings, zapcore.Level, error) {
	resolved := defaultSettings()

	if rawLevel := strings.TrimSpace(options.Level); len(rawLevel) > 0 {
		resolved.level = rawLevel
	}
	canonicalLevel, zapLevel, levelError := ParseLevel(resolved.level)
	if levelError != nil {
		return settings{}, zapcore.InfoLevel, levelError
	}
	resolved.level = canonicalLevel

	if len(options.Format) > 0 {
		resolved.format = options.Format
	}
	if len(options.DateFormat) > 0 {
		resolved.dateFormat = options.DateFormat
	}

	return resolved, zapLevel, nil
}

func openFileSink(filePath string, encoder zapcore.Encoder) (*sink, error) {
	logDirectory := filepath.Dir(filePath)
	if mkdirError := os.MkdirAll(logDirectory, logDirectoryPermissionsConstant); mkdirError != nil {
		return nil, fmt.Errorf(logDirectoryCreateErrorTemplateConstant, logDirectory, mkdirError)
	}

	logFile, openError := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissionsConstant)
	if openError != nil {
		return nil, fmt.Errorf(logFileOpenErrorTemplateConstant, filePath, openError)
	}

	return &sink{
		kind:   sinkKindFile,
		target: filePath,
		core:   zapcore.NewCore(encoder, zapcore.Lock(logFile), zapcore.DebugLevel),
		file:   logFile,
	}, nil
}

func hasSink(sinks []*sink, kind sinkKind, target string) bool {
	for _, attachedSink := range sinks {
		if attachedSink.kind == kind && attachedSink.target == target {
			return true
		}
	}
	return false
}

func closeSinks(sinks []*sink) error {
	var closeError error
	for _, attachedSink := range sinks {
		closeError = multierr.Append(closeError, attachedSink.close())
	}
	return closeError
}

// namespaceCore fans entries out to the sinks the configurator holds at write time.
type namespaceCore struct {
	configurator *Configurator
	fields       []zapcore.Field
}

func (core *namespaceCore) Enabled(level zapcore.Level) bool {
	return core.configurator.level.Enabled(level)
}

func (core *namespaceCore) With(fields []zapcore.Field) zapcore.Core {
	combinedFields := make([]zapcore.Field, 0, len(core.fields)+len(fields))
	combinedFields = append(combinedFields, core.fields...)
	combinedFields = append(combinedFields, fields...)
	return &namespaceCore{configurator: core.configurator, fields: combinedFields}
}

func (core *namespaceCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if core.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, core)
	}
	return checkedEntry
}

func (core *namespaceCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	combinedFields := fields
	if len(core.fields) > 0 {
		combinedFields = make([]zapcore.Field, 0, len(core.fields)+len(fields))
		combinedFields = append(combinedFields, core.fields...)
		combinedFields = append(combinedFields, fields...)
	}

	// Sinks stay attached until the write finishes; reconfiguration waits for it.
	core.configurator.mutex.RLock()
	defer core.configurator.mutex.RUnlock()

	var writeError error
	for _, attachedSink := range core.configurator.sinks {
		writeError = multierr.Append(writeError, attachedSink.core.Write(entry, combinedFields))
	}
	return writeError
}

func (core *namespaceCore) Sync() error {
	return core.configurator.Sync()
}
