package version

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	versionNotFoundMessageConstant         = "version field not found"
	manifestReadErrorTemplateConstant      = "unable to read manifest %s: %w"
	manifestVersionErrorTemplateConstant   = "%w in manifest %s"
	manifestParseErrorTemplateConstant     = "manifest %s: %w"
	versionKeyConstant                     = "version"
	versionLineDoubleQuoteTemplateConstant = "version = \"%s\""
	versionLineSingleQuoteTemplateConstant = "version = '%s'"
	versionLinePatternConstant             = `(?m)^\s*version\s*=\s*["']([^"']*)["']`
	tableHeaderPatternConstant             = `(?m)^[ \t]*\[\[?([^\[\]\n]*)\]\]?[ \t\r]*(?:#.*)?$`
	tableNameSeparatorConstant             = "."
	tableNameQuoteCharactersConstant       = "\"' \t"
	lineBreakConstant                      = "\n"
)

// ErrVersionNotFound indicates that a manifest does not declare a version field.
var ErrVersionNotFound = errors.New(versionNotFoundMessageConstant)

var (
	versionLinePattern = regexp.MustCompile(versionLinePatternConstant)
	tableHeaderPattern = regexp.MustCompile(tableHeaderPatternConstant)

	// manifestVersionTablePaths lists the TOML tables searched for a version, in order.
	manifestVersionTablePaths = [][]string{
		{"project"},
		{"tool", "poetry"},
		{"package"},
		{},
	}
)

// Manifest captures a project manifest and the version declared in it.
type Manifest struct {
	Path    string
	Content string
	Version Version
	// Line is the exact version assignment found in the table declaring the version, or empty when none matched verbatim.
	Line string

	lineOffset   int
	lineTemplate string
}

// ReadManifest loads the manifest at manifestPath and extracts its version.
func ReadManifest(manifestPath string) (Manifest, error) {
	contentBytes, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(manifestReadErrorTemplateConstant, manifestPath, readError)
	}

	return parseManifest(manifestPath, string(contentBytes))
}

func parseManifest(manifestPath string, content string) (Manifest, error) {
	searchStart, searchEnd := 0, len(content)
	rawVersion, tablePath, found := lookupTOMLVersion(content)
	if found {
		searchStart, searchEnd = tableSection(content, tablePath)
	} else {
		rawVersion, found = lookupVersionLine(content)
	}
	if !found {
		return Manifest{}, fmt.Errorf(manifestVersionErrorTemplateConstant, ErrVersionNotFound, manifestPath)
	}

	parsedVersion, parseError := ParseVersion(rawVersion)
	if parseError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, manifestPath, parseError)
	}

	manifest := Manifest{
		Path:    manifestPath,
		Content: content,
		Version: parsedVersion,
	}
	if searchStart >= 0 {
		manifest.Line, manifest.lineOffset, manifest.lineTemplate = locateVersionLine(content[searchStart:searchEnd], rawVersion)
		manifest.lineOffset += searchStart
	}

	return manifest, nil
}

// Rewrite returns the manifest content with the version line replaced, and whether a replacement happened.
func (manifest Manifest) Rewrite(nextVersion Version) (string, bool) {
	if len(manifest.Line) == 0 {
		return manifest.Content, false
	}

	replacementLine := fmt.Sprintf(manifest.lineTemplate, nextVersion.String())
	return manifest.Content[:manifest.lineOffset] + replacementLine + manifest.Content[manifest.lineOffset+len(manifest.Line):], true
}

func lookupTOMLVersion(content string) (string, []string, bool) {
	document := map[string]any{}
	if decodeError := toml.Unmarshal([]byte(content), &document); decodeError != nil {
		return "", nil, false
	}

	for _, tablePath := range manifestVersionTablePaths {
		table := document
		resolved := true
		for _, tableName := range tablePath {
			nestedTable, isTable := table[tableName].(map[string]any)
			if !isTable {
				resolved = false
				break
			}
			table = nestedTable
		}
		if !resolved {
			continue
		}
		if rawVersion, isString := table[versionKeyConstant].(string); isString {
			return rawVersion, tablePath, true
		}
	}

	return "", nil, false
}

func lookupVersionLine(content string) (string, bool) {
	match := versionLinePattern.FindStringSubmatch(content)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// tableSection returns the byte range holding the body of the table at tablePath.
// The root table spans up to the first header. A start of -1 means no header declares the table.
func tableSection(content string, tablePath []string) (int, int) {
	headers := tableHeaderPattern.FindAllStringSubmatchIndex(content, -1)
	if len(tablePath) == 0 {
		if len(headers) == 0 {
			return 0, len(content)
		}
		return 0, headers[0][0]
	}

	wantedName := strings.Join(tablePath, tableNameSeparatorConstant)
	for headerIndex, header := range headers {
		if normalizeTableName(content[header[2]:header[3]]) != wantedName {
			continue
		}
		sectionEnd := len(content)
		if headerIndex+1 < len(headers) {
			sectionEnd = headers[headerIndex+1][0]
		}
		return header[1], sectionEnd
	}

	return -1, -1
}

func normalizeTableName(rawName string) string {
	nameParts := strings.Split(rawName, tableNameSeparatorConstant)
	for partIndex, namePart := range nameParts {
		nameParts[partIndex] = strings.Trim(namePart, tableNameQuoteCharactersConstant)
	}
	return strings.Join(nameParts, tableNameSeparatorConstant)
}

// locateVersionLine finds the first verbatim assignment of rawVersion that starts its own line within section.
func locateVersionLine(section string, rawVersion string) (string, int, string) {
	bestOffset := -1
	bestLine, bestTemplate := "", ""
	for _, lineTemplate := range []string{versionLineDoubleQuoteTemplateConstant, versionLineSingleQuoteTemplateConstant} {
		candidateLine := fmt.Sprintf(lineTemplate, rawVersion)
		candidateOffset := findLineStart(section, candidateLine)
		if candidateOffset >= 0 && (bestOffset < 0 || candidateOffset < bestOffset) {
			bestOffset, bestLine, bestTemplate = candidateOffset, candidateLine, lineTemplate
		}
	}
	if bestOffset < 0 {
		return "", 0, ""
	}
	return bestLine, bestOffset, bestTemplate
}

func findLineStart(section string, candidateLine string) int {
	searchFrom := 0
	for {
		matchIndex := strings.Index(section[searchFrom:], candidateLine)
		if matchIndex < 0 {
			return -1
		}
		matchOffset := searchFrom + matchIndex
		lineStart := strings.LastIndex(section[:matchOffset], lineBreakConstant) + 1
		if len(strings.TrimSpace(section[lineStart:matchOffset])) == 0 {
			return matchOffset
		}
		searchFrom = matchOffset + len(candidateLine)
	}
}
