// Package testutil opens throwaway collector databases for tests.
package testutil

import (
	"fmt"
	"log"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/storage"
)

const memoryDataSourcePattern = "file:feedback-sdk-%s?mode=memory&cache=shared&_foreign_keys=on"

// MemoryDataSourceName returns a DSN naming an in-memory SQLite database no
// other test shares. Connections opened with it see the same data.
func MemoryDataSourceName(testingT *testing.T) string {
	testingT.Helper()
	return fmt.Sprintf(memoryDataSourcePattern, storage.NewID())
}

// OpenMigratedDatabase opens a fresh in-memory collector database with the
// applications, feedback and events tables in place. SQL errors go to the test log.
func OpenMigratedDatabase(testingT *testing.T) *gorm.DB {
	testingT.Helper()
	database, openErr := storage.OpenDatabase(storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: MemoryDataSourceName(testingT),
	})
	if openErr != nil {
		testingT.Fatalf("open test database: %v", openErr)
	}
	database = database.Session(&gorm.Session{Logger: logger.New(
		log.New(testLogWriter{testingT: testingT}, "", 0),
		logger.Config{IgnoreRecordNotFoundError: true, LogLevel: logger.Error},
	)})
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		testingT.Fatalf("migrate test database: %v", migrateErr)
	}
	return database
}

type testLogWriter struct {
	testingT *testing.T
}

func (writer testLogWriter) Write(data []byte) (int, error) {
	if line := strings.TrimSpace(string(data)); line != "" {
		writer.testingT.Log(line)
	}
	return len(data), nil
}
