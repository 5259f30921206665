// Package pathutils resolves manifest and log file paths supplied on the command line or in configuration.
package pathutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	homeShortcutConstant           = "~"
	homeShortcutPrefixConstant     = "~/"
	variableMarkerConstant         = "$"
	bracedVariableTemplateConstant = "${%s}"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup resolves an environment variable, reporting whether it is set.
type EnvironmentLookup func(string) (string, bool)

// PathExpander expands environment references and a leading home shortcut.
// The home directory is resolved once, on first use.
type PathExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	environmentLookup     EnvironmentLookup
	homeDirectory         string
	homeDirectoryError    error
	homeDirectoryOnce     sync.Once
}

// NewPathExpander builds a PathExpander over the process environment.
func NewPathExpander() *PathExpander {
	return NewPathExpanderWithLookups(os.UserHomeDir, os.LookupEnv)
}

// NewPathExpanderWithLookups builds a PathExpander with custom home and environment lookups.
// Nil lookups fall back to the process environment.
func NewPathExpanderWithLookups(homeProvider HomeDirectoryProvider, environmentLookup EnvironmentLookup) *PathExpander {
	if homeProvider == nil {
		homeProvider = os.UserHomeDir
	}
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	return &PathExpander{homeDirectoryProvider: homeProvider, environmentLookup: environmentLookup}
}

// Expand substitutes $NAME and ${NAME} references, then resolves "~" and "~/" against the home directory.
// Unset variables are kept in their braced form. A path that changed is returned cleaned.
func (expander *PathExpander) Expand(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if expander == nil || len(trimmedPath) == 0 {
		return candidatePath
	}

	expandedPath := trimmedPath
	if strings.Contains(expandedPath, variableMarkerConstant) {
		expandedPath = os.Expand(expandedPath, expander.lookupVariable)
	}

	switch {
	case expandedPath == homeShortcutConstant:
		if homeDirectory := expander.resolveHomeDirectory(); len(homeDirectory) > 0 {
			expandedPath = homeDirectory
		}
	case strings.HasPrefix(expandedPath, homeShortcutPrefixConstant):
		if homeDirectory := expander.resolveHomeDirectory(); len(homeDirectory) > 0 {
			expandedPath = filepath.Join(homeDirectory, strings.TrimPrefix(expandedPath, homeShortcutPrefixConstant))
		}
	}

	if expandedPath == trimmedPath {
		return candidatePath
	}
	return filepath.Clean(expandedPath)
}

func (expander *PathExpander) lookupVariable(variableName string) string {
	if value, found := expander.environmentLookup(variableName); found {
		return value
	}
	return fmt.Sprintf(bracedVariableTemplateConstant, variableName)
}

func (expander *PathExpander) resolveHomeDirectory() string {
	expander.homeDirectoryOnce.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
	})
	if expander.homeDirectoryError != nil {
		return ""
	}
	return expander.homeDirectory
}
