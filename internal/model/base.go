package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DefaultPageSize is the fixed page size for all list endpoints.
const DefaultPageSize = 10

// Pagination represents common pagination parameters
type Pagination struct {
	Page int `json:"page" form:"page"`
}

// Limit returns the page size.
func (p Pagination) Limit() int {
	return DefaultPageSize
}

// Offset returns the row offset for the requested page (1-based).
func (p Pagination) Offset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * DefaultPageSize
}

// JSONMap represents a free-form JSON object column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", src)
	}
	return json.Unmarshal(data, m)
}
