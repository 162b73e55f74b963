// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/clickwars/clickwars/app/dto"
	businessflow "github.com/clickwars/clickwars/business_flow"
	"github.com/clickwars/clickwars/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CounterHandlerInterface defines the contract for counter handlers
type CounterHandlerInterface interface {
	Increment(c fiber.Ctx) error
	BatchIncrement(c fiber.Ctx) error
	Reset(c fiber.Ctx) error
	GetCounters(c fiber.Ctx) error
	GetStatistics(c fiber.Ctx) error
	GetHistory(c fiber.Ctx) error
	HealthCheck(c fiber.Ctx) error
}

// CounterHandler handles counter-related HTTP requests
type CounterHandler struct {
	counterFlow       businessflow.CounterFlow
	validator         *validator.Validate
	attributionHeader string
}

// NewCounterHandler creates a new counter handler. attributionHeader names
// the request header logged as the acting operator on resets.
func NewCounterHandler(counterFlow businessflow.CounterFlow, attributionHeader string) *CounterHandler {
	return &CounterHandler{
		counterFlow:       counterFlow,
		validator:         validator.New(),
		attributionHeader: attributionHeader,
	}
}

func (h *CounterHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CounterHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Increment increments a single counter identified by the color path param.
// An empty body is accepted and means "increment by one".
func (h *CounterHandler) Increment(c fiber.Ctx) error {
	color := c.Params("color")

	var req dto.IncrementRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := h.clientMetadata(c)

	result, err := h.counterFlow.IncrementCounter(h.createRequestContext(c, "/api/v1/counters/:color/increment"), color, &req, metadata)
	if err != nil {
		if businessflow.IsInvalidColor(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid counter color", "INVALID_COLOR", nil)
		}
		if businessflow.IsInvalidAmount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Increment amount must be a positive integer", "INVALID_AMOUNT", nil)
		}
		if businessflow.IsCounterNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Counter row is missing", "COUNTER_NOT_FOUND", nil)
		}

		log.Println("Increment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to increment counter", "INCREMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counter incremented successfully", result)
}

// BatchIncrement processes several increments in one request. The response
// status is 400 whenever any item failed; the body still carries the
// per-item outcomes so callers can see which entries went through.
func (h *CounterHandler) BatchIncrement(c fiber.Ctx) error {
	var req dto.BatchIncrementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := h.clientMetadata(c)

	result, err := h.counterFlow.BatchIncrement(h.createRequestContext(c, "/api/v1/counters/batch-increment"), &req, metadata)
	if err != nil {
		if businessflow.IsBatchEmpty(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Batch must contain at least one increment", "BATCH_EMPTY", nil)
		}
		if businessflow.IsBatchTooLarge(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Batch exceeds the maximum number of increments", "BATCH_TOO_LARGE", nil)
		}

		log.Println("Batch increment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process batch increment", "BATCH_INCREMENT_FAILED", nil)
	}

	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Some batch increments failed",
			Data:    result,
			Error: dto.ErrorDetail{
				Code: "BATCH_PARTIAL_FAILURE",
			},
		})
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Batch increment processed successfully", result)
}

// Reset zeroes every counter. The attribution header, when present, is
// recorded for the operation log; there is no authentication.
func (h *CounterHandler) Reset(c fiber.Ctx) error {
	metadata := h.clientMetadata(c)
	if actor := c.Get(h.attributionHeader); actor != "" {
		metadata.AddAdditional("admin_actor", actor)
	}

	result, err := h.counterFlow.ResetAll(h.createRequestContext(c, "/api/v1/counters/reset"), metadata)
	if err != nil {
		log.Println("Counter reset failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset counters", "RESET_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetCounters returns the current value of every counter
func (h *CounterHandler) GetCounters(c fiber.Ctx) error {
	result, err := h.counterFlow.GetCurrentCounters(h.createRequestContext(c, "/api/v1/counters"))
	if err != nil {
		log.Println("Counter read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read counters", "GET_COUNTERS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Counters retrieved successfully", result)
}

// GetStatistics aggregates counter activity over the requested time range.
// Unknown range labels fall back to the 24-hour default rather than erroring.
func (h *CounterHandler) GetStatistics(c fiber.Ctx) error {
	timeRange := c.Query("time_range", utils.DefaultTimeRange)

	result, err := h.counterFlow.GetStatistics(h.createRequestContext(c, "/api/v1/counters/stats"), timeRange)
	if err != nil {
		log.Println("Statistics query failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute statistics", "GET_STATISTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// GetHistory returns one page of the counter audit log, most recent first
func (h *CounterHandler) GetHistory(c fiber.Ctx) error {
	query := dto.HistoryQuery{
		Color:     c.Query("color"),
		SessionID: c.Query("session_id"),
		Limit:     queryInt(c, "limit", 0),
		Offset:    queryInt(c, "offset", 0),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}

	if err := h.validator.Struct(&query); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.counterFlow.GetHistory(h.createRequestContext(c, "/api/v1/counters/history"), &query)
	if err != nil {
		if businessflow.IsInvalidColor(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid counter color", "INVALID_COLOR", nil)
		}
		if businessflow.IsInvalidDateFormat(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be in RFC3339 format", "INVALID_DATE_FORMAT", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("History query failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to query history", "GET_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved successfully", result)
}

// HealthCheck reports service and storage health. A degraded dependency
// yields 503 with the same response shape.
func (h *CounterHandler) HealthCheck(c fiber.Ctx) error {
	result, err := h.counterFlow.GetHealth(h.createRequestContext(c, "/api/v1/health"))
	if err != nil {
		log.Println("Health check failed", err)
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Health check failed", "HEALTH_CHECK_FAILED", nil)
	}

	if result.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is unhealthy",
			Data:    result,
		})
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", result)
}

func (h *CounterHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get(businessflow.RequestIDKey); requestID != "" {
		metadata.SetRequestID(requestID)
	}
	return metadata
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *CounterHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *CounterHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}

func queryInt(c fiber.Ctx, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
