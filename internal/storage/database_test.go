package storage_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/storage"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/testutil"
)

const (
	testApplicationID                = int64(42)
	testApplicationKey               = "k"
	testApplicationName              = "Demo"
	testFeedbackMessageValue         = "Hello"
	testFeedbackIPAddressValue       = "127.0.0.1"
	testFeedbackUserAgentValue       = "test-agent"
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)

	application, applicationErr := model.NewApplication(testApplicationID, testApplicationKey, testApplicationName)
	require.NoError(t, applicationErr)
	require.NoError(t, database.Create(&application).Error)

	feedback, feedbackErr := model.NewFeedback(model.FeedbackInput{
		ApplicationID: application.ID,
		Message:       testFeedbackMessageValue,
		IP:            testFeedbackIPAddressValue,
		UserAgent:     testFeedbackUserAgentValue,
	})
	require.NoError(t, feedbackErr)
	require.NoError(t, database.Create(&feedback).Error)

	fetchedApplication, findErr := storage.FindApplication(database, testApplicationID)
	require.NoError(t, findErr)
	require.Equal(t, testApplicationName, fetchedApplication.Name)
}

func TestSeedApplicationsReplacesKeys(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)

	require.NoError(t, storage.SeedApplications(database, []model.Application{{ID: testApplicationID, APIKey: "old"}}))
	require.NoError(t, storage.SeedApplications(database, []model.Application{{ID: testApplicationID, APIKey: "new", Name: testApplicationName}}))
	require.NoError(t, storage.SeedApplications(database, nil))

	application, findErr := storage.FindApplication(database, testApplicationID)
	require.NoError(t, findErr)
	require.Equal(t, "new", application.APIKey)
	require.Equal(t, testApplicationName, application.Name)

	var applicationCount int64
	require.NoError(t, database.Model(&model.Application{}).Count(&applicationCount).Error)
	require.Equal(t, int64(1), applicationCount)
}

func TestFindApplicationReportsUnknownID(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)

	_, findErr := storage.FindApplication(database, 7)
	require.ErrorIs(t, findErr, storage.ErrApplicationNotFound)
}

func TestListFeedbackReturnsNewestFirst(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	require.NoError(t, storage.SeedApplications(database, []model.Application{{ID: testApplicationID, APIKey: testApplicationKey}}))

	baseTime := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	for index, message := range []string{"first", "second", "third"} {
		feedback, feedbackErr := model.NewFeedback(model.FeedbackInput{ApplicationID: testApplicationID, Message: message})
		require.NoError(t, feedbackErr)
		feedback.CreatedAt = baseTime.Add(time.Duration(index) * time.Minute)
		require.NoError(t, database.Create(&feedback).Error)
	}
	otherFeedback, otherErr := model.NewFeedback(model.FeedbackInput{ApplicationID: 7, Message: "elsewhere"})
	require.NoError(t, otherErr)
	require.NoError(t, database.Create(&otherFeedback).Error)

	feedback, listErr := storage.ListFeedback(database, testApplicationID, 2)
	require.NoError(t, listErr)
	require.Len(t, feedback, 2)
	require.Equal(t, "third", feedback[0].Message)
	require.Equal(t, "second", feedback[1].Message)

	allFeedback, allErr := storage.ListFeedback(database, testApplicationID, 0)
	require.NoError(t, allErr)
	require.Len(t, allFeedback, 3)
}

func TestCountEventsByKind(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)

	for _, kind := range []string{model.EventKindOpen, model.EventKindOpen, model.EventKindImpression} {
		event, eventErr := model.NewEvent(testApplicationID, kind, testFeedbackIPAddressValue, testFeedbackUserAgentValue)
		require.NoError(t, eventErr)
		require.NoError(t, database.Create(&event).Error)
	}

	openCount, openErr := storage.CountEvents(database, testApplicationID, model.EventKindOpen)
	require.NoError(t, openErr)
	require.Equal(t, int64(2), openCount)

	impressionCount, impressionErr := storage.CountEvents(database, testApplicationID, model.EventKindImpression)
	require.NoError(t, impressionErr)
	require.Equal(t, int64(1), impressionCount)
}

func TestOpenDatabaseValidation(t *testing.T) {
	dataSourceName := testutil.MemoryDataSourceName(t)

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: dataSourceName,
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: dataSourceName,
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}
