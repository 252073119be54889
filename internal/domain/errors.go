package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrInvalidPlan план не поддерживается
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrConfiguration отсутствует или не заполнена настройка
	ErrConfiguration = errors.New("configuration error")

	// ErrSignatureInvalid не удалось проверить подпись вебхука
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrMissingMetadata в событии нет userId или plan
	ErrMissingMetadata = errors.New("missing event metadata")

	// ErrStoreWrite не удалось записать изменение в хранилище
	ErrStoreWrite = errors.New("store write failed")

	// ErrSessionCreation провайдер не создал сессию
	ErrSessionCreation = errors.New("checkout session creation failed")

	// ErrProviderTimeout провайдер не ответил вовремя
	ErrProviderTimeout = errors.New("payment provider timeout")

	// ErrUnauthenticated пользователь не аутентифицирован
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized пользователь не авторизован
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes returned to clients.
const (
	CodeInvalidPlan      = "InvalidPlan"
	CodeInvalidInput     = "InvalidInput"
	CodeConfiguration    = "ConfigurationError"
	CodeSignatureInvalid = "SignatureInvalid"
	CodeMissingMetadata  = "MissingMetadata"
	CodeStoreWrite       = "StoreWriteError"
	CodeSessionCreation  = "SessionCreationError"
	CodeProviderTimeout  = "ProviderTimeout"
	CodeNotFound         = "NotFound"
	CodeUnauthenticated  = "Unauthenticated"
	CodeUnauthorized     = "Unauthorized"
	CodeInternal         = "InternalError"
)

// EntitlementError представляет ошибку операции над подпиской
type EntitlementError struct {
	Code        string
	Message     string
	UserID      string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *EntitlementError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("entitlement error [%s]: %s: %v (user_id: %s)", e.Code, e.Message, e.OriginalErr, e.UserID)
	}
	return fmt.Sprintf("entitlement error [%s]: %s (user_id: %s)", e.Code, e.Message, e.UserID)
}

// Unwrap возвращает оригинальную ошибку
func (e *EntitlementError) Unwrap() error {
	return e.OriginalErr
}

// NewEntitlementError создает новую ошибку. err должен быть одной из
// sentinel-ошибок пакета или оборачивать её, чтобы errors.Is продолжал работать.
func NewEntitlementError(code, message, userID string, statusCode int, err error) *EntitlementError {
	return &EntitlementError{
		Code:        code,
		Message:     message,
		UserID:      userID,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

var sentinelStatus = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidPlan, CodeInvalidPlan, http.StatusBadRequest},
	{ErrInvalidInput, CodeInvalidInput, http.StatusBadRequest},
	{ErrSignatureInvalid, CodeSignatureInvalid, http.StatusBadRequest},
	{ErrMissingMetadata, CodeMissingMetadata, http.StatusBadRequest},
	{ErrConfiguration, CodeConfiguration, http.StatusInternalServerError},
	{ErrStoreWrite, CodeStoreWrite, http.StatusInternalServerError},
	{ErrSessionCreation, CodeSessionCreation, http.StatusBadGateway},
	{ErrProviderTimeout, CodeProviderTimeout, http.StatusGatewayTimeout},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrUnauthenticated, CodeUnauthenticated, http.StatusUnauthorized},
	{ErrUnauthorized, CodeUnauthorized, http.StatusForbidden},
}

// StatusOf maps an error to its client-facing code and HTTP status.
// Unknown errors map to 500.
func StatusOf(err error) (string, int) {
	var ee *EntitlementError
	if errors.As(err, &ee) && ee.Code != "" && ee.StatusCode != 0 {
		return ee.Code, ee.StatusCode
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.code, s.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

// Error реализует интерфейс error
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}

	return fmt.Sprintf("validation failed: %d errors", len(e))
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Unwrap позволяет errors.Is(err, ErrInvalidInput) для ошибок валидации
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidInput
}
