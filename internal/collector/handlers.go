// Package collector serves the feedback endpoints the SDK client talks to.
package collector

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_sdk/internal/storage"
)

const (
	jsonKeyError    = "error"
	jsonKeyMessage  = "message"
	jsonKeyFeedback = "feedback"

	errorValueInvalidJSON        = "invalid_json"
	errorValueMissingMessage     = "missing_message"
	errorValueInvalidKey         = "invalid_key"
	errorValueUnknownApplication = "unknown_application"
	errorValueRateLimited        = "rate_limited"
	errorValueSaveFailed         = "save_failed"
	errorValueQueryFailed        = "query_failed"

	// ConfirmationMessage is returned to the client after a stored submission.
	ConfirmationMessage = "Thanks for your feedback!"

	applicationIDParameter = "id"
	apiKeyQueryParameter   = "key"
	feedbackListLimit      = 100
)

// Handlers implements the open, impression, submit and list endpoints.
type Handlers struct {
	database    *gorm.DB
	logger      *zap.Logger
	rateLimiter *RateLimiter
}

func NewHandlers(database *gorm.DB, logger *zap.Logger, rateLimiter *RateLimiter) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(defaultRateWindow, defaultMaxRequestsPerWindow)
	}
	return &Handlers{
		database:    database,
		logger:      logger,
		rateLimiter: rateLimiter,
	}
}

type submitFeedbackRequest struct {
	Message    string         `json:"message"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

type feedbackResponse struct {
	ID         string         `json:"id"`
	Message    string         `json:"message"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	IP         string         `json:"ip"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  int64          `json:"created_at"`
}

func (handlers *Handlers) Open(context *gin.Context) {
	handlers.recordEvent(context, model.EventKindOpen)
}

func (handlers *Handlers) Impression(context *gin.Context) {
	handlers.recordEvent(context, model.EventKindImpression)
}

func (handlers *Handlers) recordEvent(context *gin.Context, kind string) {
	application, authorized := handlers.authorize(context)
	if !authorized {
		return
	}

	event, eventErr := model.NewEvent(application.ID, kind, context.ClientIP(), context.Request.UserAgent())
	if eventErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: eventErr.Error()})
		return
	}
	if saveErr := handlers.database.Create(&event).Error; saveErr != nil {
		handlers.logger.Warn("save_event", zap.String("kind", kind), zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.Status(http.StatusNoContent)
}

func (handlers *Handlers) Submit(context *gin.Context) {
	clientIP := context.ClientIP()
	if handlers.rateLimiter.Limited(clientIP, time.Now()) {
		context.JSON(http.StatusTooManyRequests, gin.H{jsonKeyError: errorValueRateLimited})
		return
	}

	application, authorized := handlers.authorize(context)
	if !authorized {
		return
	}

	var payload submitFeedbackRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	feedback, feedbackErr := model.NewFeedback(model.FeedbackInput{
		ApplicationID: application.ID,
		Message:       payload.Message,
		Email:         payload.Email,
		Name:          payload.Name,
		Properties:    payload.Properties,
		IP:            clientIP,
		UserAgent:     context.Request.UserAgent(),
	})
	switch {
	case errors.Is(feedbackErr, model.ErrMissingMessage):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingMessage})
		return
	case feedbackErr != nil:
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	if saveErr := handlers.database.Create(&feedback).Error; saveErr != nil {
		handlers.logger.Warn("save_feedback", zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}

	handlers.logger.Info("feedback_saved",
		zap.Int64("application_id", application.ID),
		zap.String("feedback_id", feedback.ID),
		zap.Int("properties", len(payload.Properties)),
	)
	context.JSON(http.StatusCreated, gin.H{jsonKeyMessage: ConfirmationMessage})
}

func (handlers *Handlers) ListFeedback(context *gin.Context) {
	application, authorized := handlers.authorize(context)
	if !authorized {
		return
	}

	records, listErr := storage.ListFeedback(handlers.database, application.ID, feedbackListLimit)
	if listErr != nil {
		handlers.logger.Warn("list_feedback", zap.Error(listErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}

	responses := make([]feedbackResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, feedbackResponse{
			ID:         record.ID,
			Message:    record.Message,
			Email:      record.Email,
			Name:       record.Name,
			Properties: record.DecodedProperties(),
			IP:         record.IP,
			UserAgent:  record.UserAgent,
			CreatedAt:  record.CreatedAt.Unix(),
		})
	}
	context.JSON(http.StatusOK, gin.H{jsonKeyFeedback: responses})
}

// authorize resolves the application in the path and checks the key query parameter.
// It writes the error response itself when it returns false.
func (handlers *Handlers) authorize(context *gin.Context) (model.Application, bool) {
	applicationID, parseErr := strconv.ParseInt(strings.TrimSpace(context.Param(applicationIDParameter)), 10, 64)
	if parseErr != nil || applicationID <= 0 {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownApplication})
		return model.Application{}, false
	}

	application, findErr := storage.FindApplication(handlers.database, applicationID)
	if errors.Is(findErr, storage.ErrApplicationNotFound) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownApplication})
		return model.Application{}, false
	}
	if findErr != nil {
		handlers.logger.Warn("find_application", zap.Int64("application_id", applicationID), zap.Error(findErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return model.Application{}, false
	}

	providedKey := strings.TrimSpace(context.Query(apiKeyQueryParameter))
	if subtle.ConstantTimeCompare([]byte(providedKey), []byte(application.APIKey)) != 1 {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueInvalidKey})
		return model.Application{}, false
	}
	return application, true
}
