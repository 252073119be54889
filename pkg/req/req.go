package req

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/res"
	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes ограничение размера JSON тела запроса
const MaxBodyBytes = 64 * 1024

var validate = validator.New()

// Decode декодирует JSON из io.ReadCloser в структуру типа T. Пустое тело
// дает нулевое значение T.
func Decode[T any](body io.ReadCloser) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// HandleBody декодирует и валидирует тело запроса. При ошибке ответ 400 уже
// записан в w.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := Decode[T](r.Body)
	if err != nil {
		res.JsonErrorResponse(w, res.ErrorResponse{Error: "malformed request body", Code: "InvalidInput"}, http.StatusBadRequest, log)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fe.Field()+": "+fe.Tag())
			}
		}
		res.JsonErrorResponse(w, res.ErrorResponse{Error: "invalid request data", Code: "InvalidInput", Details: details}, http.StatusBadRequest, log)
		return nil, err
	}
	return &body, nil
}
