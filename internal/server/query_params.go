package server

import (
	"errors"
	"strconv"
	"strings"

	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
)

var (
	errInvalidLimit  = errors.New("invalid_limit")
	errInvalidStatus = errors.New("invalid_status")
)

// parseOptionalLimit returns fallback for an empty value and rejects anything outside [1, upper].
func parseOptionalLimit(value string, fallback, upper int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 1 || parsed > upper {
		return 0, errInvalidLimit
	}
	return parsed, nil
}

func parseOptionalStatus(value string) (*subscriptiondomain.Status, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return nil, nil
	}
	status := subscriptiondomain.Status(trimmed)
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	return &status, nil
}
