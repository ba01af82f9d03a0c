package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Injection patterns: SQL/NoSQL and template fragments that never belong in
// a chat message forwarded to a prompt.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`\$\{.*\}`),
	regexp.MustCompile(`\{\{.*\}\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const (
	minMakeLen     = 2
	minModelLen    = 1
	minSymptomsLen = 10
	minModelYear   = 1900 // exclusive

	// MaxMessageLen bounds a single chat message.
	MaxMessageLen = 2000
	// MaxHistoryTurns is how much chat history reaches the prompt.
	MaxHistoryTurns = 20
)

func runes(s string) int { return utf8.RuneCountInString(s) }

func validateMakeModel(make_, model string) ValidationErrors {
	var errs ValidationErrors
	if runes(make_) < minMakeLen {
		errs = append(errs, NewValidationError("make", make_, ErrInvalidMake))
	}
	if runes(model) < minModelLen {
		errs = append(errs, NewValidationError("model", model, ErrInvalidModel))
	}
	return errs
}

// ParseYear accepts a model year in (1900, now.Year()+1].
func ParseYear(s string, now time.Time) (int, error) {
	s = strings.TrimSpace(s)
	y, err := strconv.Atoi(s)
	if err != nil || y <= minModelYear || y > now.Year()+1 {
		return 0, NewValidationError("year", s, ErrInvalidYear)
	}
	return y, nil
}

// ValidateSymptomForm checks a symptom checker submission. Every failing
// field is reported, in form order.
func ValidateSymptomForm(f SymptomForm, now time.Time) (Vehicle, string, error) {
	v := Vehicle{Make: strings.TrimSpace(f.Make), Model: strings.TrimSpace(f.Model)}
	symptoms := strings.TrimSpace(f.Symptoms)

	errs := validateMakeModel(v.Make, v.Model)
	year, err := ParseYear(f.Year, now)
	if err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	v.Year = year
	if runes(symptoms) < minSymptomsLen {
		errs = append(errs, NewValidationError("symptoms", symptoms, ErrSymptomsTooShort))
	}
	if len(errs) > 0 {
		return Vehicle{}, "", errs
	}
	return v, symptoms, nil
}

// ValidateMaintenanceForm checks a maintenance advisor submission.
func ValidateMaintenanceForm(f MaintenanceForm) (Vehicle, error) {
	v := Vehicle{Make: strings.TrimSpace(f.Make), Model: strings.TrimSpace(f.Model)}
	if errs := validateMakeModel(v.Make, v.Model); len(errs) > 0 {
		return Vehicle{}, errs
	}
	return v, nil
}

// ValidateChatForm checks a chat submission and returns a normalized copy:
// trimmed message, system turns dropped, history cut to MaxHistoryTurns.
func ValidateChatForm(f ChatForm) (ChatForm, error) {
	msg := strings.TrimSpace(f.Message)
	if msg == "" {
		return ChatForm{}, NewValidationError("message", msg, ErrEmptyMessage)
	}
	if runes(msg) > MaxMessageLen {
		return ChatForm{}, NewValidationError("message", string([]rune(msg)[:64]), ErrMessageTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(msg) {
			return ChatForm{}, NewValidationError("message", msg, ErrQueryInjection)
		}
	}

	history := make([]ChatTurn, 0, len(f.History))
	for _, t := range f.History {
		switch t.Role {
		case RoleSystem:
			continue
		case RoleUser, RoleModel:
		default:
			return ChatForm{}, NewValidationError("history.role", string(t.Role), ErrInvalidRole)
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		history = append(history, t)
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	return ChatForm{Message: msg, History: history}, nil
}
