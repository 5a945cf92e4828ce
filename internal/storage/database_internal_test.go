package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testOpenerFailureMessage = "opener failure"

func TestOpenDatabaseWrapsOpenerError(testingT *testing.T) {
	originalOpeners := databaseOpeners
	testingT.Cleanup(func() {
		databaseOpeners = originalOpeners
	})

	var receivedConfiguration Config
	databaseOpeners = map[string]databaseOpener{
		DriverNameSQLite: func(configuration Config) (*gorm.DB, error) {
			receivedConfiguration = configuration
			return nil, errors.New(testOpenerFailureMessage)
		},
	}

	_, openErr := OpenDatabase(Config{
		DriverName:     "  " + DriverNameSQLite + " ",
		DataSourceName: " file:feedback.db ",
	})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenDatabase)
	require.Contains(testingT, openErr.Error(), testOpenerFailureMessage)
	require.Equal(testingT, Config{DriverName: DriverNameSQLite, DataSourceName: "file:feedback.db"}, receivedConfiguration)
}

func TestOpenSQLiteDatabaseReportsOpenError(testingT *testing.T) {
	missingDirectory := filepath.Join(testingT.TempDir(), "missing")
	dataSourceName := fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", filepath.Join(missingDirectory, "feedback.db"))

	_, openErr := openSQLiteDatabase(Config{DataSourceName: dataSourceName})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenSQLiteDatabase)
}
