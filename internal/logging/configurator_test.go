package logging_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/devtools/internal/logging"
)

const (
	testNamespaceConstant              = "devtools"
	testModuleLoggerNameConstant       = "devtools.module"
	testOtherModuleLoggerNameConstant  = "devtools.other"
	testForeignLoggerNameConstant      = "someotherpackage.module"
	testLogFileNameConstant            = "test.log"
	testCustomFormatConstant           = "CUSTOM: {message}"
	testCustomDateFormatConstant       = "02/01/2006 15:04"
	testInvalidLevelConstant           = "INVALID_LEVEL"
	testLoggingSubtestTemplateConstant = "%d_%s"
)

type synchronizedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (writer *synchronizedBuffer) Write(data []byte) (int, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.buffer.Write(data)
}

func (writer *synchronizedBuffer) String() string {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.buffer.String()
}

func newTestConfigurator(testInstance *testing.T) (*logging.Configurator, *synchronizedBuffer, *synchronizedBuffer) {
	testInstance.Helper()
	consoleOutput := &synchronizedBuffer{}
	fallbackOutput := &synchronizedBuffer{}
	configurator := logging.NewConfigurator(
		testNamespaceConstant,
		logging.WithConsoleWriter(consoleOutput),
		logging.WithFallbackWriter(fallbackOutput),
	)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, configurator.Close())
	})
	return configurator, consoleOutput, fallbackOutput
}

func TestConfiguratorLoggerIdentity(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	firstLogger := configurator.Logger(testModuleLoggerNameConstant)
	secondLogger := configurator.Logger(testModuleLoggerNameConstant)
	otherLogger := configurator.Logger(testOtherModuleLoggerNameConstant)

	require.Same(testInstance, firstLogger, secondLogger)
	require.NotSame(testInstance, firstLogger, otherLogger)
	require.Equal(testInstance, testModuleLoggerNameConstant, firstLogger.Name())
	require.Equal(testInstance, "devtools.sub.module.component", configurator.Logger("devtools.sub.module.component").Name())
}

func TestConfiguratorAutoConfiguresOnce(testInstance *testing.T) {
	configurator, consoleOutput, _ := newTestConfigurator(testInstance)
	require.False(testInstance, configurator.Snapshot().Configured)

	logger := configurator.Logger(testModuleLoggerNameConstant)
	snapshot := configurator.Snapshot()
	require.True(testInstance, snapshot.Configured)
	require.Equal(testInstance, 1, snapshot.SinkCount)

	configurator.Logger(testOtherModuleLoggerNameConstant)
	require.Equal(testInstance, 1, configurator.Snapshot().SinkCount)

	logger.Info("Auto-configured message")
	require.Contains(testInstance, consoleOutput.String(), "Auto-configured message")
}

func TestConfiguratorForeignLoggerSkipsConfiguration(testInstance *testing.T) {
	configurator, consoleOutput, fallbackOutput := newTestConfigurator(testInstance)

	foreignLogger := configurator.Logger(testForeignLoggerNameConstant)
	require.False(testInstance, configurator.Snapshot().Configured)

	foreignLogger.Info("foreign info")
	foreignLogger.Warn("foreign warning")
	require.NotContains(testInstance, fallbackOutput.String(), "foreign info")
	require.Contains(testInstance, fallbackOutput.String(), "foreign warning")

	require.NoError(testInstance, configurator.Configure(logging.Options{Level: logging.LevelDebug}))
	foreignLogger.Warn("still foreign")
	require.NotContains(testInstance, consoleOutput.String(), "still foreign")

	configurator.Logger("devtoolsextra.module")
	require.Equal(testInstance, 1, configurator.Snapshot().SinkCount)
}

func TestConfiguratorConfigureOptions(testInstance *testing.T) {
	testCases := []struct {
		name               string
		options            logging.Options
		expectedLevel      string
		expectedFormat     string
		expectedDateFormat string
		expectedSinkCount  int
	}{
		{
			name:               "defaults",
			options:            logging.Options{},
			expectedLevel:      logging.DefaultLevel,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  1,
		},
		{
			name:               "custom_level",
			options:            logging.Options{Level: logging.LevelWarning},
			expectedLevel:      logging.LevelWarning,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  1,
		},
		{
			name:               "case_insensitive_level",
			options:            logging.Options{Level: "debug"},
			expectedLevel:      logging.LevelDebug,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  1,
		},
		{
			name:               "warn_alias",
			options:            logging.Options{Level: "warn"},
			expectedLevel:      logging.LevelWarning,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  1,
		},
		{
			name:               "custom_templates",
			options:            logging.Options{Format: testCustomFormatConstant, DateFormat: testCustomDateFormatConstant},
			expectedLevel:      logging.DefaultLevel,
			expectedFormat:     testCustomFormatConstant,
			expectedDateFormat: testCustomDateFormatConstant,
			expectedSinkCount:  1,
		},
		{
			name:               "console_suppressed",
			options:            logging.Options{SuppressConsole: true},
			expectedLevel:      logging.DefaultLevel,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  0,
		},
		{
			name:               "empty_file_path_ignored",
			options:            logging.Options{FilePath: "  "},
			expectedLevel:      logging.DefaultLevel,
			expectedFormat:     logging.DefaultFormat,
			expectedDateFormat: logging.DefaultDateFormat,
			expectedSinkCount:  1,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggingSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			configurator, _, _ := newTestConfigurator(testInstance)

			require.NoError(testInstance, configurator.Configure(testCase.options))

			snapshot := configurator.Snapshot()
			require.True(testInstance, snapshot.Configured)
			require.Equal(testInstance, testCase.expectedLevel, snapshot.Level)
			require.Equal(testInstance, testCase.expectedFormat, snapshot.Format)
			require.Equal(testInstance, testCase.expectedDateFormat, snapshot.DateFormat)
			require.Equal(testInstance, testCase.expectedSinkCount, snapshot.SinkCount)
		})
	}
}

func TestConfiguratorSnapshotBeforeConfiguration(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	require.Equal(testInstance, logging.Snapshot{
		Level:      logging.DefaultLevel,
		Format:     logging.DefaultFormat,
		DateFormat: logging.DefaultDateFormat,
		Configured: false,
		SinkCount:  0,
	}, configurator.Snapshot())
}

func TestConfiguratorInvalidLevel(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	configureError := configurator.Configure(logging.Options{Level: testInvalidLevelConstant})
	require.ErrorIs(testInstance, configureError, logging.ErrInvalidLevel)
	require.Contains(testInstance, configureError.Error(), "invalid log level")

	snapshot := configurator.Snapshot()
	require.False(testInstance, snapshot.Configured)
	require.Equal(testInstance, logging.DefaultLevel, snapshot.Level)
	require.Zero(testInstance, snapshot.SinkCount)
}

func TestConfiguratorIgnoresRepeatedConfiguration(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	require.NoError(testInstance, configurator.Configure(logging.Options{Level: logging.LevelInfo}))
	require.NoError(testInstance, configurator.Configure(logging.Options{Level: logging.LevelDebug}))
	require.NoError(testInstance, configurator.Configure(logging.Options{}))

	snapshot := configurator.Snapshot()
	require.Equal(testInstance, logging.LevelInfo, snapshot.Level)
	require.Equal(testInstance, 1, snapshot.SinkCount)

	require.NoError(testInstance, configurator.Configure(logging.Options{Level: testInvalidLevelConstant}))
}

func TestConfiguratorForceReconfigure(testInstance *testing.T) {
	configurator, consoleOutput, _ := newTestConfigurator(testInstance)
	logFilePath := filepath.Join(testInstance.TempDir(), testLogFileNameConstant)

	require.NoError(testInstance, configurator.Configure(logging.Options{Level: logging.LevelInfo, FilePath: logFilePath}))
	require.Equal(testInstance, 2, configurator.Snapshot().SinkCount)

	logger := configurator.Logger(testModuleLoggerNameConstant)
	logger.Debug("Should not appear")
	require.NotContains(testInstance, consoleOutput.String(), "Should not appear")

	require.NoError(testInstance, configurator.Configure(logging.Options{Level: logging.LevelDebug, ForceReconfigure: true}))
	snapshot := configurator.Snapshot()
	require.Equal(testInstance, logging.LevelDebug, snapshot.Level)
	require.Equal(testInstance, 1, snapshot.SinkCount)

	logger.Debug("Should appear now")
	require.Contains(testInstance, consoleOutput.String(), "Should appear now")

	fileContent, readError := os.ReadFile(logFilePath)
	require.NoError(testInstance, readError)
	require.NotContains(testInstance, string(fileContent), "Should appear now")

	require.NoError(testInstance, configurator.Configure(logging.Options{SuppressConsole: true, FilePath: logFilePath, ForceReconfigure: true}))
	require.Equal(testInstance, 1, configurator.Snapshot().SinkCount)
	logger.Info("file only")
	require.NotContains(testInstance, consoleOutput.String(), "file only")
}

func TestConfiguratorAcceptsEveryLevel(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	for _, levelName := range logging.Levels() {
		require.NoError(testInstance, configurator.Configure(logging.Options{Level: levelName, ForceReconfigure: true}))
		require.Equal(testInstance, levelName, configurator.Snapshot().Level)
	}
}

func TestConfiguratorFileSink(testInstance *testing.T) {
	configurator, consoleOutput, _ := newTestConfigurator(testInstance)
	logFilePath := filepath.Join(testInstance.TempDir(), "nested", "dirs", testLogFileNameConstant)

	require.NoError(testInstance, configurator.Configure(logging.Options{FilePath: logFilePath}))

	directoryInfo, statError := os.Stat(filepath.Dir(logFilePath))
	require.NoError(testInstance, statError)
	require.True(testInstance, directoryInfo.IsDir())
	require.FileExists(testInstance, logFilePath)
	require.Equal(testInstance, 2, configurator.Snapshot().SinkCount)

	configurator.Logger(testModuleLoggerNameConstant).Info("Dual output test")
	require.NoError(testInstance, configurator.Sync())

	fileContent, readError := os.ReadFile(logFilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(fileContent), "Dual output test")
	require.Contains(testInstance, consoleOutput.String(), "Dual output test")
}

func TestConfiguratorFileSinkFailureLeavesStateUntouched(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)
	blockingFilePath := filepath.Join(testInstance.TempDir(), "blocker")
	require.NoError(testInstance, os.WriteFile(blockingFilePath, []byte("file"), 0o600))

	configureError := configurator.Configure(logging.Options{FilePath: filepath.Join(blockingFilePath, testLogFileNameConstant)})
	require.Error(testInstance, configureError)

	snapshot := configurator.Snapshot()
	require.False(testInstance, snapshot.Configured)
	require.Zero(testInstance, snapshot.SinkCount)
}

func TestConfiguratorOutputFormatting(testInstance *testing.T) {
	testCases := []struct {
		name            string
		options         logging.Options
		emit            func(*zap.Logger)
		expectedPattern string
		unexpected      []string
	}{
		{
			name:    "custom_format",
			options: logging.Options{Format: testCustomFormatConstant},
			emit: func(logger *zap.Logger) {
				logger.Info("Test")
			},
			expectedPattern: `^CUSTOM: Test\n$`,
		},
		{
			name:    "default_format",
			options: logging.Options{},
			emit: func(logger *zap.Logger) {
				logger.Info("hello")
			},
			expectedPattern: `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \| devtools\.module \| INFO \| hello\n$`,
		},
		{
			name:    "custom_date_format",
			options: logging.Options{Format: "[{time}] {message}", DateFormat: "2006/01/02"},
			emit: func(logger *zap.Logger) {
				logger.Info("dated")
			},
			expectedPattern: `^\[\d{4}/\d{2}/\d{2}\] dated\n$`,
		},
		{
			name:    "fields_follow_template",
			options: logging.Options{Format: "{level} {message}"},
			emit: func(logger *zap.Logger) {
				logger.With(zap.String("component", "bump")).Warn("with fields", zap.Int("attempt", 2))
			},
			expectedPattern: `^WARNING with fields \{"component": "bump", "attempt": 2\}\n$`,
		},
		{
			name:    "error_details",
			options: logging.Options{Format: "{level} {message}"},
			emit: func(logger *zap.Logger) {
				logger.Error("An error occurred", zap.Error(errors.New("Test exception")))
			},
			expectedPattern: `^ERROR An error occurred \{"error": "Test exception"\}\n$`,
		},
		{
			name:    "critical_level_name",
			options: logging.Options{Format: "{level} {message}"},
			emit: func(logger *zap.Logger) {
				logger.DPanic("critical condition")
			},
			expectedPattern: `^CRITICAL critical condition\n$`,
		},
		{
			name:    "level_threshold",
			options: logging.Options{Level: logging.LevelWarning, Format: "{message}"},
			emit: func(logger *zap.Logger) {
				logger.Debug("Debug message")
				logger.Info("Info message")
				logger.Warn("Warning message")
			},
			expectedPattern: `^Warning message\n$`,
			unexpected:      []string{"Debug message", "Info message"},
		},
		{
			name:    "every_level_at_debug",
			options: logging.Options{Level: logging.LevelDebug, Format: "{level}:{message}"},
			emit: func(logger *zap.Logger) {
				logger.Debug("Debug msg")
				logger.Info("Info msg")
				logger.Warn("Warning msg")
				logger.Error("Error msg")
				logger.DPanic("Critical msg")
			},
			expectedPattern: `^DEBUG:Debug msg\nINFO:Info msg\nWARNING:Warning msg\nERROR:Error msg\nCRITICAL:Critical msg\n$`,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggingSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			configurator, consoleOutput, _ := newTestConfigurator(testInstance)
			require.NoError(testInstance, configurator.Configure(testCase.options))

			testCase.emit(configurator.Logger(testModuleLoggerNameConstant))

			output := consoleOutput.String()
			require.Regexp(testInstance, regexp.MustCompile(testCase.expectedPattern), output)
			for _, unexpectedFragment := range testCase.unexpected {
				require.NotContains(testInstance, output, unexpectedFragment)
			}
		})
	}
}

func TestConfiguratorSharedSinksAcrossModules(testInstance *testing.T) {
	configurator, consoleOutput, _ := newTestConfigurator(testInstance)
	require.NoError(testInstance, configurator.Configure(logging.Options{}))

	configurator.Logger("devtools.module1").Info("Message from module 1")
	configurator.Logger("devtools.module2").Info("Message from module 2")

	output := consoleOutput.String()
	require.Contains(testInstance, output, "devtools.module1")
	require.Contains(testInstance, output, "devtools.module2")
	require.Equal(testInstance, 2, strings.Count(output, "\n"))
}

func TestConfiguratorColorizedLevels(testInstance *testing.T) {
	consoleOutput := &synchronizedBuffer{}
	configurator := logging.NewConfigurator(testNamespaceConstant, logging.WithConsoleWriter(consoleOutput), logging.WithColorizedLevels(true))
	testInstance.Cleanup(func() {
		require.NoError(testInstance, configurator.Close())
	})

	require.NoError(testInstance, configurator.Configure(logging.Options{Format: "{level}"}))
	configurator.Logger(testModuleLoggerNameConstant).Info("ignored")

	require.Equal(testInstance, "\x1b[34mINFO\x1b[0m\n", consoleOutput.String())
}

func TestConfiguratorConcurrentConfiguration(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)

	const workerCount = 16
	configureErrors := make(chan error, workerCount)

	var waitGroup sync.WaitGroup
	for workerIndex := 0; workerIndex < workerCount; workerIndex++ {
		waitGroup.Add(1)
		go func(workerIndex int) {
			defer waitGroup.Done()
			configureErrors <- configurator.Configure(logging.Options{})
			configurator.Logger(fmt.Sprintf("devtools.worker%d", workerIndex)).Info("worker started")
			_ = configurator.Snapshot()
		}(workerIndex)
	}
	waitGroup.Wait()
	close(configureErrors)

	for configureError := range configureErrors {
		require.NoError(testInstance, configureError)
	}

	require.Equal(testInstance, 1, configurator.Snapshot().SinkCount)
}

func TestConfiguratorForcedReconfigureKeepsConcurrentRecords(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)
	logFilePath := filepath.Join(testInstance.TempDir(), testLogFileNameConstant)
	fileOptions := logging.Options{Format: "{message}", FilePath: logFilePath, SuppressConsole: true}
	require.NoError(testInstance, configurator.Configure(fileOptions))

	const writerCount = 8
	const recordsPerWriter = 200
	const reconfigurationCount = 50

	moduleLogger := configurator.Logger(testModuleLoggerNameConstant)
	reconfigureErrors := make(chan error, reconfigurationCount)

	var waitGroup sync.WaitGroup
	for writerIndex := 0; writerIndex < writerCount; writerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for recordIndex := 0; recordIndex < recordsPerWriter; recordIndex++ {
				moduleLogger.Info("record")
			}
		}()
	}
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		forcedOptions := fileOptions
		forcedOptions.ForceReconfigure = true
		for reconfigurationIndex := 0; reconfigurationIndex < reconfigurationCount; reconfigurationIndex++ {
			reconfigureErrors <- configurator.Configure(forcedOptions)
		}
	}()
	waitGroup.Wait()
	close(reconfigureErrors)

	for reconfigureError := range reconfigureErrors {
		require.NoError(testInstance, reconfigureError)
	}
	require.NoError(testInstance, configurator.Sync())

	fileContent, readError := os.ReadFile(logFilePath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, writerCount*recordsPerWriter, strings.Count(string(fileContent), "record\n"))
}

func TestConfiguratorClose(testInstance *testing.T) {
	configurator, _, _ := newTestConfigurator(testInstance)
	logFilePath := filepath.Join(testInstance.TempDir(), testLogFileNameConstant)

	require.NoError(testInstance, configurator.Configure(logging.Options{FilePath: logFilePath}))
	require.NoError(testInstance, configurator.Close())

	snapshot := configurator.Snapshot()
	require.False(testInstance, snapshot.Configured)
	require.Zero(testInstance, snapshot.SinkCount)
}

func TestParseLevel(testInstance *testing.T) {
	canonicalLevel, _, parseError := logging.ParseLevel(" critical ")
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, logging.LevelCritical, canonicalLevel)

	_, _, invalidError := logging.ParseLevel("verbose")
	require.ErrorIs(testInstance, invalidError, logging.ErrInvalidLevel)
}

func TestDefaultConfigurator(testInstance *testing.T) {
	require.NoError(testInstance, logging.Default().Close())
	testInstance.Cleanup(func() {
		require.NoError(testInstance, logging.Default().Close())
	})

	require.Equal(testInstance, logging.DefaultNamespace, logging.Default().Namespace())
	require.False(testInstance, logging.CurrentConfig().Configured)

	require.NoError(testInstance, logging.Configure(logging.Options{Level: logging.LevelError}))
	require.NoError(testInstance, logging.Configure(logging.Options{Level: logging.LevelDebug}))
	require.Equal(testInstance, logging.LevelError, logging.CurrentConfig().Level)
	require.Same(testInstance, logging.GetLogger("devtools.sample"), logging.GetLogger("devtools.sample"))
}
