package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidMake      = errors.New("invalid make")
	ErrInvalidModel     = errors.New("invalid model")
	ErrInvalidYear      = errors.New("invalid year")
	ErrSymptomsTooShort = errors.New("symptoms too short")
	ErrEmptyMessage     = errors.New("empty message")
	ErrMessageTooLong   = errors.New("message too long")
	ErrInvalidRole      = errors.New("invalid role")
	ErrQueryInjection   = errors.New("query contains suspicious content")
)

// Outcome errors: the model answered but produced nothing usable.
var (
	ErrNoDiagnosis = errors.New("model returned no diagnoses")
	ErrNoSchedule  = errors.New("model returned no schedule")
	ErrNoAnswer    = errors.New("model returned no answer")
)

// MsgUnexpected is shown for any failure without a dedicated message.
const MsgUnexpected = "Произошла непредвиденная ошибка. Пожалуйста, попробуйте еще раз."

// userMessages holds the text shown to the user for each sentinel.
var userMessages = map[error]string{
	ErrInvalidMake:      "Пожалуйста, введите действительную марку.",
	ErrInvalidModel:     "Пожалуйста, введите действительную модель.",
	ErrInvalidYear:      "Пожалуйста, введите действительный год.",
	ErrSymptomsTooShort: "Пожалуйста, опишите симптомы более подробно.",
	ErrEmptyMessage:     "Пожалуйста, введите сообщение.",
	ErrMessageTooLong:   "Сообщение слишком длинное.",
	ErrInvalidRole:      "Некорректная история разговора.",
	ErrQueryInjection:   "Сообщение содержит недопустимые фрагменты.",
	ErrNoDiagnosis:      "ИИ не смог поставить диагноз. Пожалуйста, попробуйте быть более конкретным.",
	ErrNoSchedule:       "ИИ не смог создать график. Пожалуйста, проверьте данные автомобиля.",
	ErrNoAnswer:         "ИИ не смог ответить. Пожалуйста, переформулируйте вопрос.",
}

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// UserMessage returns the localized message for the wrapped sentinel.
func (e *ValidationError) UserMessage() string {
	if m, ok := userMessages[e.Wrapped]; ok {
		return m
	}
	return e.Wrapped.Error()
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ValidationErrors collects every field failure of one form.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes each field error to errors.Is and errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// UserMessage joins the localized messages with ", ".
func (es ValidationErrors) UserMessage() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.UserMessage()
	}
	return strings.Join(parts, ", ")
}

// UserMessage extracts the user-facing text from a validation or outcome
// error, or "" when err is neither.
func UserMessage(err error) string {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many.UserMessage()
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return one.UserMessage()
	}
	for _, sentinel := range []error{ErrNoDiagnosis, ErrNoSchedule, ErrNoAnswer} {
		if errors.Is(err, sentinel) {
			return userMessages[sentinel]
		}
	}
	return ""
}

// IsValidation reports whether err came from form validation.
func IsValidation(err error) bool {
	var one *ValidationError
	return errors.As(err, &one)
}
