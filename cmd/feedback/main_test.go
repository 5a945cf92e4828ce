package main_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	feedbackcmd "github.com/MarkoPoloResearchLab/feedback_sdk/cmd/feedback"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/collector"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/storage"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/terminal"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/testutil"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/probe"
	"github.com/MarkoPoloResearchLab/feedback_sdk/pkg/properties"
)

const (
	testEnvironmentKeyAppID         = "FEEDBACK_APP_ID"
	testEnvironmentKeyAPIKey        = "FEEDBACK_API_KEY"
	testMissingConfigurationMessage = "missing required configuration"
	testFlagIndicator               = "--"
	testUsagePrefix                 = "Usage:"
	testApplicationID               = int64(42)
	testApplicationKey              = "k"
)

type commandHarness struct {
	database *gorm.DB
	baseURL  string
}

func buildCommandHarness(testingT *testing.T) commandHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)
	database := testutil.OpenMigratedDatabase(testingT)
	require.NoError(testingT, storage.SeedApplications(database, []model.Application{{ID: testApplicationID, APIKey: testApplicationKey}}))
	server := httptest.NewServer(collector.NewRouter(database, zap.NewNop(), collector.DefaultRouterConfig()))
	testingT.Cleanup(server.Close)
	return commandHarness{database: database, baseURL: server.URL + "/api"}
}

func linuxHostFileSystem() fstest.MapFS {
	return fstest.MapFS{
		"sys/class/dmi/id/product_name": {Data: []byte("ThinkPad X1\n")},
		"etc/os-release":                {Data: []byte("NAME=Ubuntu\nPRETTY_NAME=\"Ubuntu 24.04 LTS\"\n")},
	}
}

func runFeedbackCommand(testingT *testing.T, input string, arguments ...string) (string, error) {
	testingT.Helper()
	application := feedbackcmd.NewFeedbackApplication().
		WithLogger(zap.NewNop()).
		WithHostOptions(
			probe.WithOperatingSystem("linux"),
			probe.WithFileSystem(linuxHostFileSystem()),
			probe.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
				return nil, errors.New("commands are not available in tests")
			}),
		)
	command, commandErr := application.Command()
	require.NoError(testingT, commandErr)

	output := &bytes.Buffer{}
	command.SetIn(strings.NewReader(input))
	command.SetOut(output)
	command.SetErr(output)
	command.SetArgs(arguments)
	executeErr := command.Execute()
	return output.String(), executeErr
}

func TestFeedbackCommandMissingConfigurationShowsHelp(t *testing.T) {
	testCases := []struct {
		name                string
		appID               string
		apiKey              string
		expectedMissingFlag string
	}{
		{name: "missing app id", appID: "", apiKey: testApplicationKey, expectedMissingFlag: "app-id"},
		{name: "missing api key", appID: "42", apiKey: "", expectedMissingFlag: "api-key"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			testingT.Setenv(testEnvironmentKeyAppID, testCase.appID)
			testingT.Setenv(testEnvironmentKeyAPIKey, testCase.apiKey)

			output, executeErr := runFeedbackCommand(testingT, "")

			require.Error(testingT, executeErr)
			require.Contains(testingT, output, testMissingConfigurationMessage)
			require.Contains(testingT, output, testUsagePrefix)
			require.Contains(testingT, output, testFlagIndicator+testCase.expectedMissingFlag)
		})
	}
}

func TestFeedbackCommandSubmitsPromptedFeedback(t *testing.T) {
	harness := buildCommandHarness(t)
	propertiesFile := filepath.Join(t.TempDir(), "properties.yaml")
	require.NoError(t, os.WriteFile(propertiesFile, []byte("Seats: 3\nPlan: free\n"), 0o600))

	output, executeErr := runFeedbackCommand(t,
		"The export button is broken\n\nuser@example.com\n",
		"--app-id", "42",
		"--api-key", testApplicationKey,
		"--base-url", harness.baseURL,
		"--email", "prefilled@example.com",
		"--name", "Ada",
		"--property", "Plan=pro",
		"--properties-file", propertiesFile,
		"--screen", "Checkout",
		"--app-version-name", "1.2.3",
		"--app-version-code", "7",
		"--impression",
	)

	require.NoError(t, executeErr, output)
	require.Contains(t, output, collector.ConfirmationMessage)
	require.Contains(t, output, "Powered by Doorbell.io")

	stored, listErr := storage.ListFeedback(harness.database, testApplicationID, 0)
	require.NoError(t, listErr)
	require.Len(t, stored, 1)
	require.Equal(t, "The export button is broken", stored[0].Message)
	require.Equal(t, "user@example.com", stored[0].Email)
	require.Equal(t, "Ada", stored[0].Name)
	require.Equal(t, map[string]any{
		properties.KeyModel:          "ThinkPad X1",
		properties.KeyOSVersion:      "Ubuntu 24.04 LTS",
		properties.KeyActivity:       "Checkout",
		properties.KeyAppVersionName: "1.2.3",
		properties.KeyAppVersionCode: float64(7),
		"Plan":                       "pro",
		"Seats":                      float64(3),
	}, stored[0].DecodedProperties())

	for _, kind := range []string{model.EventKindOpen, model.EventKindImpression} {
		count, countErr := storage.CountEvents(harness.database, testApplicationID, kind)
		require.NoError(t, countErr)
		require.Equal(t, int64(1), count, kind)
	}
}

func TestFeedbackCommandUsesMessageFlagWithoutEmailPrompt(t *testing.T) {
	harness := buildCommandHarness(t)

	output, executeErr := runFeedbackCommand(t, "",
		"--app-id", "42",
		"--api-key", testApplicationKey,
		"--base-url", harness.baseURL,
		"--message", "Love it",
		"--hide-email",
		"--hide-powered-by",
	)

	require.NoError(t, executeErr, output)
	require.NotContains(t, output, "Powered by")
	stored, listErr := storage.ListFeedback(harness.database, testApplicationID, 0)
	require.NoError(t, listErr)
	require.Len(t, stored, 1)
	require.Equal(t, "Love it", stored[0].Message)
	require.Empty(t, stored[0].Email)
}

func TestFeedbackCommandReportsRejectedSubmission(t *testing.T) {
	harness := buildCommandHarness(t)

	output, executeErr := runFeedbackCommand(t, "",
		"--app-id", "42",
		"--api-key", "wrong",
		"--base-url", harness.baseURL,
		"--message", "hello",
		"--hide-email",
	)

	require.Error(t, executeErr)
	require.Contains(t, executeErr.Error(), "feedback submission failed")
	require.Contains(t, output, "invalid_key")
	require.NotContains(t, output, testUsagePrefix)
}

func TestFeedbackCommandRejectsEmptyMessage(t *testing.T) {
	harness := buildCommandHarness(t)

	_, executeErr := runFeedbackCommand(t, "\n",
		"--app-id", "42",
		"--api-key", testApplicationKey,
		"--base-url", harness.baseURL,
	)

	require.ErrorIs(t, executeErr, terminal.ErrEmptyMessage)
	var storedCount int64
	require.NoError(t, harness.database.Model(&model.Feedback{}).Count(&storedCount).Error)
	require.Zero(t, storedCount)
}

func TestFeedbackCommandRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  string
	}{
		{name: "non numeric app id", arguments: []string{"--app-id", "abc", "--api-key", "k"}, expected: "app-id"},
		{name: "zero app id", arguments: []string{"--app-id", "0", "--api-key", "k"}, expected: "invalid configuration"},
		{name: "bad version code", arguments: []string{"--app-id", "42", "--api-key", "k", "--app-version-code", "v7"}, expected: "app-version-code"},
		{name: "bad property", arguments: []string{"--app-id", "42", "--api-key", "k", "--property", "novalue"}, expected: "property"},
		{name: "missing properties file", arguments: []string{"--app-id", "42", "--api-key", "k", "--properties-file", "/nonexistent/properties.yaml"}, expected: "read properties file"},
		{name: "bad base url", arguments: []string{"--app-id", "42", "--api-key", "k", "--base-url", "not a url"}, expected: "invalid configuration"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, executeErr := runFeedbackCommand(testingT, "", testCase.arguments...)
			require.Error(testingT, executeErr)
			require.Contains(testingT, executeErr.Error(), testCase.expected)
		})
	}
}
