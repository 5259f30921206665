package version_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	pathutils "github.com/temirov/devtools/internal/utils/path"
	"github.com/temirov/devtools/internal/version"
)

const (
	commandManifestFlagConstant          = "--manifest"
	commandDryRunFlagConstant            = "--dry-run"
	commandConfiguredKindConstant        = "major"
	commandBumpedOutputTemplateConstant  = "Version bumped -> %s\n"
	commandPreviewOutputTemplateConstant = "Version would be bumped -> %s\n"
	commandHomeManifestPathConstant      = "~/" + testManifestFileNameConstant
	commandManifestVariableConstant      = "DEVTOOLS_TEST_MANIFEST_DIR"
	commandVariableManifestPathConstant  = "${" + commandManifestVariableConstant + "}/" + testManifestFileNameConstant
)

func TestBumpCommandScenarios(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       func(manifestPath string) []string
		configuration   func(manifestPath string) version.CommandConfiguration
		expectedOutput  string
		expectedContent string
	}{
		{
			name: "explicit_minor",
			arguments: func(manifestPath string) []string {
				return []string{"minor", commandManifestFlagConstant, manifestPath}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.3.0"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"1.3.0\"\ndescription = \"demo project\"\n",
		},
		{
			name: "no_argument_defaults_to_patch",
			arguments: func(manifestPath string) []string {
				return []string{commandManifestFlagConstant, manifestPath}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.2.4"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"1.2.4\"\ndescription = \"demo project\"\n",
		},
		{
			name: "unrecognized_argument_defaults_to_patch",
			arguments: func(manifestPath string) []string {
				return []string{"build", commandManifestFlagConstant, manifestPath}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.2.4"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"1.2.4\"\ndescription = \"demo project\"\n",
		},
		{
			name: "configuration_supplies_manifest_and_kind",
			arguments: func(string) []string {
				return nil
			},
			configuration: func(manifestPath string) version.CommandConfiguration {
				return version.CommandConfiguration{ManifestPath: manifestPath, Kind: commandConfiguredKindConstant}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "2.0.0"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"2.0.0\"\ndescription = \"demo project\"\n",
		},
		{
			name: "argument_overrides_configured_kind",
			arguments: func(string) []string {
				return []string{"PATCH"}
			},
			configuration: func(manifestPath string) version.CommandConfiguration {
				return version.CommandConfiguration{ManifestPath: manifestPath, Kind: commandConfiguredKindConstant}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.2.4"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"1.2.4\"\ndescription = \"demo project\"\n",
		},
		{
			name: "dry_run_leaves_manifest",
			arguments: func(manifestPath string) []string {
				return []string{"major", commandManifestFlagConstant, manifestPath, commandDryRunFlagConstant}
			},
			expectedOutput:  fmt.Sprintf(commandPreviewOutputTemplateConstant, "2.0.0"),
			expectedContent: testProjectManifestContentConstant,
		},
		{
			name: "configured_dry_run_overridden_by_flag",
			arguments: func(string) []string {
				return []string{commandDryRunFlagConstant + "=false"}
			},
			configuration: func(manifestPath string) version.CommandConfiguration {
				return version.CommandConfiguration{ManifestPath: manifestPath, DryRun: true}
			},
			expectedOutput:  fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.2.4"),
			expectedContent: "[project]\nname = \"demo\"\nversion = \"1.2.4\"\ndescription = \"demo project\"\n",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testVersionSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			manifestPath := writeManifest(testInstance, testProjectManifestContentConstant, 0o644)

			observerCore, observedLogs := observer.New(zap.DebugLevel)
			builder := version.CommandBuilder{
				LoggerProvider: func() *zap.Logger {
					return zap.New(observerCore)
				},
				LockDirectory: testInstance.TempDir(),
			}
			if testCase.configuration != nil {
				configuration := testCase.configuration(manifestPath)
				builder.ConfigurationProvider = func() version.CommandConfiguration {
					return configuration
				}
			}

			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			var outputBuffer bytes.Buffer
			command.SetOut(&outputBuffer)
			command.SetErr(&outputBuffer)
			command.SetContext(context.Background())
			command.SetArgs(testCase.arguments(manifestPath))

			require.NoError(testInstance, command.Execute())
			require.Equal(testInstance, testCase.expectedOutput, outputBuffer.String())

			content, readError := os.ReadFile(manifestPath)
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.expectedContent, string(content))
			require.NotZero(testInstance, observedLogs.Len())
		})
	}
}

func TestBumpCommandExpandsManifestPath(testInstance *testing.T) {
	testCases := []struct {
		name         string
		manifestPath string
	}{
		{name: "home_shortcut", manifestPath: commandHomeManifestPathConstant},
		{name: "environment_variable", manifestPath: commandVariableManifestPathConstant},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testVersionSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			manifestPath := writeManifest(testInstance, testProjectManifestContentConstant, 0o644)
			manifestDirectory := filepath.Dir(manifestPath)

			builder := version.CommandBuilder{
				LockDirectory: testInstance.TempDir(),
				PathExpander: pathutils.NewPathExpanderWithLookups(
					func() (string, error) {
						return manifestDirectory, nil
					},
					func(variableName string) (string, bool) {
						return manifestDirectory, variableName == commandManifestVariableConstant
					},
				),
			}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			var outputBuffer bytes.Buffer
			command.SetOut(&outputBuffer)
			command.SetArgs([]string{commandManifestFlagConstant, testCase.manifestPath})

			require.NoError(testInstance, command.Execute())
			require.Equal(testInstance, fmt.Sprintf(commandBumpedOutputTemplateConstant, "1.2.4"), outputBuffer.String())

			content, readError := os.ReadFile(manifestPath)
			require.NoError(testInstance, readError)
			require.Contains(testInstance, string(content), "version = \"1.2.4\"")
		})
	}
}

func TestBumpCommandFailures(testInstance *testing.T) {
	testCases := []struct {
		name           string
		content        string
		arguments      func(manifestPath string) []string
		expectedError  error
		expectedSubstr string
	}{
		{
			name:    "too_many_arguments",
			content: testProjectManifestContentConstant,
			arguments: func(manifestPath string) []string {
				return []string{"major", "minor", commandManifestFlagConstant, manifestPath}
			},
			expectedSubstr: "at most one segment argument",
		},
		{
			name:    "malformed_version",
			content: testMalformedManifestContentConstant,
			arguments: func(manifestPath string) []string {
				return []string{commandManifestFlagConstant, manifestPath}
			},
			expectedError: version.ErrMalformedVersion,
		},
		{
			name:    "missing_manifest",
			content: testProjectManifestContentConstant,
			arguments: func(manifestPath string) []string {
				return []string{commandManifestFlagConstant, manifestPath + ".missing"}
			},
			expectedError: os.ErrNotExist,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testVersionSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			manifestPath := writeManifest(testInstance, testCase.content, 0o644)

			builder := version.CommandBuilder{LockDirectory: testInstance.TempDir()}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)

			var outputBuffer bytes.Buffer
			command.SetOut(&outputBuffer)
			command.SetErr(&outputBuffer)
			command.SilenceUsage = true
			command.SetArgs(testCase.arguments(manifestPath))

			executeError := command.Execute()
			require.Error(testInstance, executeError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, executeError, testCase.expectedError)
			}
			if len(testCase.expectedSubstr) > 0 {
				require.Contains(testInstance, executeError.Error(), testCase.expectedSubstr)
			}
			require.NotContains(testInstance, outputBuffer.String(), "Version bumped")
		})
	}
}

func TestDefaultConfigurationValues(testInstance *testing.T) {
	require.Equal(testInstance, map[string]any{
		"tools.bump.manifest": version.DefaultManifestPath,
		"tools.bump.kind":     "patch",
		"tools.bump.dry_run":  false,
	}, version.DefaultConfigurationValues("tools.bump"))
}
