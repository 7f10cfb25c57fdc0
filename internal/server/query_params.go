package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parsePageSize(value string) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultPageSize
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return defaultPageSize
	}
	if parsed > maxPageSize {
		return maxPageSize
	}
	return parsed
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return parsed, nil
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, ErrInvalidRequest
}
