package repository

import (
	"errors"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = domain.ErrNotFound

	// ErrInvalidData мутация нарушает инвариант записи
	ErrInvalidData = errors.New("invalid data")
)
