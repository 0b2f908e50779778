package api

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"taskboard-api/domain"
)

const (
	maxTextLength     = 200
	maxCategoryLength = 50
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 8
	dueDateLayout     = "2006-01-02"
)

// violations collects every validation failure for a request so a client can
// fix all of them in one round trip.
type violations []string

func (v *violations) add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func validateText(text string, v *violations) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		v.add("text is required and must not be empty")
		return ""
	}
	// Limits count characters, not bytes; multibyte text must not be
	// penalized.
	if utf8.RuneCountInString(trimmed) > maxTextLength {
		v.add("text must be at most %d characters", maxTextLength)
	}
	return trimmed
}

func validatePriority(raw string, v *violations) domain.Priority {
	p := domain.Priority(raw)
	if !p.Valid() {
		v.add("priority must be one of high, medium, low")
	}
	return p
}

func validateDueDate(raw string, v *violations) {
	if _, err := time.Parse(dueDateLayout, raw); err != nil {
		v.add("due_date must be a valid date in YYYY-MM-DD format")
	}
}

func validateCategory(raw string, v *violations) {
	if utf8.RuneCountInString(raw) > maxCategoryLength {
		v.add("category must be at most %d characters", maxCategoryLength)
	}
}

// dueDateInPast reports whether a valid due date lies before today. Past
// dates are accepted; callers only flag them informationally.
func dueDateInPast(raw string) bool {
	due, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return false
	}
	today, _ := time.Parse(dueDateLayout, time.Now().Format(dueDateLayout))
	return due.Before(today)
}

func validateUsername(username string, v *violations) string {
	trimmed := strings.TrimSpace(username)
	if n := utf8.RuneCountInString(trimmed); n < minUsernameLength || n > maxUsernameLength {
		v.add("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	return trimmed
}

func validateEmail(email string, v *violations) string {
	trimmed := strings.TrimSpace(email)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		v.add("email must be a valid email address")
	}
	return trimmed
}

func validatePassword(password string, v *violations) {
	if len(password) < minPasswordLength {
		v.add("password must be at least %d characters", minPasswordLength)
	}
}

// sanitizeIDs drops entries that are not positive integers. Invalid entries
// in bulk requests are skipped silently; only the accepted ones count toward
// the reported total.
func sanitizeIDs(ids []int64) []int64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
