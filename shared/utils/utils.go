package utils

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// GenerateID returns a new random identifier.
func GenerateID() string {
	return uuid.NewString()
}

// ValidateID reports whether s is a well-formed identifier.
func ValidateID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseMonth parses YYYY-MM into the first day of that month in UTC.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t, nil
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Unique returns the distinct non-empty values of ids in sorted order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasCents reports whether d fits in two decimal places.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// MaxAmount is the largest magnitude a NUMERIC(18, 2) money column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// ValidAmount reports whether d can be stored in a money column: at most
// two decimal places and no larger in magnitude than MaxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return HasCents(d) && d.Abs().LessThanOrEqual(MaxAmount)
}
