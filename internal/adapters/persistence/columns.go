package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"

	"memberdesk/backend/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// dateColumn scans DATE (postgres) or TEXT (sqlite) columns into a
// YYYY-MM-DD string; NULL becomes "".
type dateColumn struct{ target *string }

func (c dateColumn) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*c.target = ""
	case time.Time:
		*c.target = value.Format(domain.DateLayout)
	case string:
		*c.target = truncateDate(value)
	case []byte:
		*c.target = truncateDate(string(value))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
	return nil
}

func truncateDate(value string) string {
	if len(value) > len(domain.DateLayout) {
		return value[:len(domain.DateLayout)]
	}
	return value
}

// timeColumn scans TIMESTAMPTZ (postgres) or RFC 3339 TEXT (sqlite).
type timeColumn struct{ target *time.Time }

func (c timeColumn) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*c.target = time.Time{}
	case time.Time:
		*c.target = value.UTC()
	case string:
		return c.parse(value)
	case []byte:
		return c.parse(string(value))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
	return nil
}

func (c timeColumn) parse(value string) error {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", value, err)
	}
	*c.target = parsed.UTC()
	return nil
}

// textColumn maps NULL to "".
type textColumn struct{ target *string }

func (c textColumn) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*c.target = ""
	case string:
		*c.target = value
	case []byte:
		*c.target = string(value)
	default:
		return fmt.Errorf("unsupported text value %T", src)
	}
	return nil
}

// intColumn maps NULL to 0.
type intColumn struct{ target *int64 }

func (c intColumn) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*c.target = 0
	case int64:
		*c.target = value
	default:
		return fmt.Errorf("unsupported integer value %T", src)
	}
	return nil
}

func dateValue(value string) driver.Value {
	if value == "" {
		return nil
	}
	return value
}

func timeValue(value time.Time) driver.Value {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func textValue(value string) driver.Value {
	if value == "" {
		return nil
	}
	return value
}

func intValue(value int64) driver.Value {
	if value == 0 {
		return nil
	}
	return value
}
