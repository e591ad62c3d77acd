package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/logger"

	"go.uber.org/zap"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

// errorData is the payload of a rejected request: a stable code callers can switch on and,
// for request shape problems, the offending field.
type errorData struct {
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// WriteError maps a service or decoding error onto the envelope. Persistence failures are
// logged with their cause and reported to the caller with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		Response(w, ve.Error(), errorData{Code: "INVALID_REQUEST", Field: ve.Field}, 400, "error", http.StatusBadRequest)
		return
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		ErrorInternal(w, "internal error")
		return
	}

	switch de.Kind {
	case domain.KindValidation:
		Response(w, de.Message, errorData{Code: de.Code}, 400, "error", http.StatusBadRequest)
	case domain.KindStateConflict:
		Response(w, de.Message, errorData{Code: de.Code}, 409, "error", http.StatusConflict)
	case domain.KindNotFound:
		Response(w, de.Message, errorData{Code: de.Code}, 404, "error", http.StatusNotFound)
	default:
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("code", de.Code),
			zap.Error(err),
		)
		Response(w, domain.ErrExternalWrite.Message, errorData{Code: de.Code}, 500, "error", http.StatusInternalServerError)
	}
}
