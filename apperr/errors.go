// Package apperr — типизированные ошибки приложения.
// Сообщения пользовательские, на узбекском — как и весь внешний интерфейс.
package apperr

import (
	"errors"
	"fmt"
)

// Error — базовая ошибка приложения со стабильным кодом.
type Error struct {
	Code    string
	Message string
	// Service заполняется только для EXTERNAL_SERVICE_ERROR.
	Service string
	err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.err }

// Коды ошибок, отдаваемые HTTP-клиенту.
const (
	CodeAuthentication  = "AUTHENTICATION_ERROR"
	CodeAuthorization   = "AUTHORIZATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeValidation      = "VALIDATION_ERROR"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
)

func Authentication(message string) *Error {
	if message == "" {
		message = "Noto'g'ri login yoki parol"
	}
	return &Error{Code: CodeAuthentication, Message: message}
}

func Authorization(message string) *Error {
	if message == "" {
		message = "Sizda bu amalni bajarish huquqi yo'q"
	}
	return &Error{Code: CodeAuthorization, Message: message}
}

func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resurs"
	}
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s topilmadi", resource)}
}

func AlreadyExists(resource string) *Error {
	if resource == "" {
		resource = "Resurs"
	}
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf("%s allaqachon mavjud", resource)}
}

func Validation(message string) *Error {
	if message == "" {
		message = "Validatsiya xatosi"
	}
	return &Error{Code: CodeValidation, Message: message}
}

func RateLimit() *Error {
	return &Error{
		Code:    CodeRateLimit,
		Message: "So'rovlar limiti oshib ketdi. Biroz kutib turing.",
	}
}

// ExternalService помечает ошибку внешнего сервиса его именем —
// по нему в логах видно, какой бэкенд виноват.
func ExternalService(service string, err error) *Error {
	return &Error{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s: xizmat bilan bog'lanishda xatolik", service),
		Service: service,
		err:     err,
	}
}

// As извлекает *Error из цепочки.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
