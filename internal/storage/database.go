package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/model"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenDatabase              = "storage: open database"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageApplicationNotFound       = "storage: application not found"
	errorMessageSeedApplications          = "storage: seed applications"

	defaultFeedbackListLimit = 100
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
	// ErrApplicationNotFound indicates no application is registered under the requested id.
	ErrApplicationNotFound = errors.New(errorMessageApplicationNotFound)
)

type databaseOpener func(Config) (*gorm.DB, error)

var databaseOpeners = map[string]databaseOpener{
	DriverNameSQLite: openSQLiteDatabase,
}

// Config captures database connection configuration.
type Config struct {
	DriverName     string
	DataSourceName string
}

// OpenDatabase opens a database connection using the configured driver and data source name.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	trimmedDriverName := strings.TrimSpace(configuration.DriverName)
	if trimmedDriverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}

	opener, driverSupported := databaseOpeners[trimmedDriverName]
	if !driverSupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, trimmedDriverName)
	}

	database, openErr := opener(Config{
		DriverName:     trimmedDriverName,
		DataSourceName: strings.TrimSpace(configuration.DataSourceName),
	})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenDatabase, openErr)
	}

	return database, nil
}

func openSQLiteDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(sqlite.Open(configuration.DataSourceName), &gorm.Config{})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}

	return database, nil
}

// AutoMigrate runs database migrations for the storage layer models.
func AutoMigrate(database *gorm.DB) error {
	return database.AutoMigrate(&model.Application{}, &model.Feedback{}, &model.Event{})
}

// NewID generates a new globally unique identifier.
func NewID() string {
	return uuid.NewString()
}

// SeedApplications registers the applications, replacing the key of ids that already exist.
func SeedApplications(database *gorm.DB, applications []model.Application) error {
	if len(applications) == 0 {
		return nil
	}
	upsertErr := database.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key", "name"}),
	}).Create(&applications).Error
	if upsertErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSeedApplications, upsertErr)
	}
	return nil
}

// FindApplication loads the application registered under id.
func FindApplication(database *gorm.DB, id int64) (model.Application, error) {
	var application model.Application
	findErr := database.First(&application, "id = ?", id).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		return model.Application{}, fmt.Errorf("%w: %d", ErrApplicationNotFound, id)
	}
	if findErr != nil {
		return model.Application{}, findErr
	}
	return application, nil
}

// ListFeedback returns the newest feedback of an application first.
func ListFeedback(database *gorm.DB, applicationID int64, limit int) ([]model.Feedback, error) {
	if limit <= 0 {
		limit = defaultFeedbackListLimit
	}
	var feedback []model.Feedback
	queryErr := database.
		Where("application_id = ?", applicationID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&feedback).Error
	if queryErr != nil {
		return nil, queryErr
	}
	return feedback, nil
}

// CountEvents reports how many events of kind were recorded for an application.
func CountEvents(database *gorm.DB, applicationID int64, kind string) (int64, error) {
	var count int64
	countErr := database.Model(&model.Event{}).
		Where("application_id = ? AND kind = ?", applicationID, kind).
		Count(&count).Error
	return count, countErr
}
