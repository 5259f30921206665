package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	levelDebugNameConstant            = "DEBUG"
	levelInfoNameConstant             = "INFO"
	levelWarningNameConstant          = "WARNING"
	levelWarnAliasConstant            = "WARN"
	levelErrorNameConstant            = "ERROR"
	levelCriticalNameConstant         = "CRITICAL"
	levelPanicNameConstant            = "PANIC"
	levelFatalNameConstant            = "FATAL"
	invalidLevelMessageConstant       = "invalid log level"
	invalidLevelErrorTemplateConstant = "%w: %s"
	colorResetSequenceConstant        = "\x1b[0m"
)

// ErrInvalidLevel indicates that a requested log level is not one of the supported severities.
var ErrInvalidLevel = errors.New(invalidLevelMessageConstant)

// Supported level names.
const (
	LevelDebug    = levelDebugNameConstant
	LevelInfo     = levelInfoNameConstant
	LevelWarning  = levelWarningNameConstant
	LevelError    = levelErrorNameConstant
	LevelCritical = levelCriticalNameConstant
)

var levelMapping = map[string]zapcore.Level{
	levelDebugNameConstant:    zapcore.DebugLevel,
	levelInfoNameConstant:     zapcore.InfoLevel,
	levelWarningNameConstant:  zapcore.WarnLevel,
	levelWarnAliasConstant:    zapcore.WarnLevel,
	levelErrorNameConstant:    zapcore.ErrorLevel,
	levelCriticalNameConstant: zapcore.DPanicLevel,
}

var levelDisplayNames = map[zapcore.Level]string{
	zapcore.DebugLevel:  levelDebugNameConstant,
	zapcore.InfoLevel:   levelInfoNameConstant,
	zapcore.WarnLevel:   levelWarningNameConstant,
	zapcore.ErrorLevel:  levelErrorNameConstant,
	zapcore.DPanicLevel: levelCriticalNameConstant,
	zapcore.PanicLevel:  levelPanicNameConstant,
	zapcore.FatalLevel:  levelFatalNameConstant,
}

var levelColorSequences = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[35m",
	zapcore.InfoLevel:   "\x1b[34m",
	zapcore.WarnLevel:   "\x1b[33m",
	zapcore.ErrorLevel:  "\x1b[31m",
	zapcore.DPanicLevel: "\x1b[1;31m",
	zapcore.PanicLevel:  "\x1b[1;31m",
	zapcore.FatalLevel:  "\x1b[1;31m",
}

// Levels lists the supported level names from most to least verbose.
func Levels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical}
}

// ParseLevel resolves a level name case-insensitively, returning its canonical name and zap severity.
func ParseLevel(rawLevel string) (string, zapcore.Level, error) {
	normalizedLevel := strings.ToUpper(strings.TrimSpace(rawLevel))
	zapLevel, levelExists := levelMapping[normalizedLevel]
	if !levelExists {
		return "", zapcore.InfoLevel, fmt.Errorf(invalidLevelErrorTemplateConstant, ErrInvalidLevel, rawLevel)
	}
	return levelDisplayNames[zapLevel], zapLevel, nil
}

func levelDisplayName(level zapcore.Level, colorize bool) string {
	displayName, known := levelDisplayNames[level]
	if !known {
		displayName = level.CapitalString()
	}
	if !colorize {
		return displayName
	}
	colorSequence, colored := levelColorSequences[level]
	if !colored {
		return displayName
	}
	return colorSequence + displayName + colorResetSequenceConstant
}
