package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testHelpFlag = "--help"

func TestMainRunsHelpCommand(testingT *testing.T) {
	originalArguments := os.Args
	testingT.Cleanup(func() {
		os.Args = originalArguments
	})

	os.Args = []string{commandUseName, testHelpFlag}
	main()
}

func TestLoadPropertiesMergesFileAndPairs(testingT *testing.T) {
	propertiesFile := filepath.Join(testingT.TempDir(), "properties.yaml")
	require.NoError(testingT, os.WriteFile(propertiesFile, []byte("Plan: free\nBeta: true\nSeats: 5\n"), 0o600))

	merged, loadErr := loadProperties(propertiesFile, []string{"Plan=pro", " Region = eu=west"})
	require.NoError(testingT, loadErr)
	require.Equal(testingT, map[string]any{
		"Plan":   "pro",
		"Beta":   true,
		"Seats":  5,
		"Region": " eu=west",
	}, merged)

	empty, emptyErr := loadProperties("", nil)
	require.NoError(testingT, emptyErr)
	require.Empty(testingT, empty)
	require.Equal(testingT, []string{"Beta", "Plan", "Region", "Seats"}, sortedKeys(merged))
}

func TestLoadPropertiesRejectsMalformedYAML(testingT *testing.T) {
	propertiesFile := filepath.Join(testingT.TempDir(), "properties.yaml")
	require.NoError(testingT, os.WriteFile(propertiesFile, []byte("- just\n- a list\n"), 0o600))

	_, loadErr := loadProperties(propertiesFile, nil)
	require.Error(testingT, loadErr)
}

func TestLoadPropertiesRejectsNonScalarValues(testingT *testing.T) {
	testCases := []struct {
		name     string
		contents string
		key      string
	}{
		{name: "nested map", contents: "Plan: pro\nLimits:\n  seats: 5\n", key: "Limits"},
		{name: "list", contents: "Tags:\n  - beta\n  - eu\n", key: "Tags"},
		{name: "empty value", contents: "Plan:\n", key: "Plan"},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			propertiesFile := filepath.Join(testingT.TempDir(), "properties.yaml")
			require.NoError(testingT, os.WriteFile(propertiesFile, []byte(testCase.contents), 0o600))

			merged, loadErr := loadProperties(propertiesFile, nil)
			require.Nil(testingT, merged)
			require.ErrorContains(testingT, loadErr, invalidConfigurationMessage)
			require.ErrorContains(testingT, loadErr, testCase.key)
		})
	}
}
