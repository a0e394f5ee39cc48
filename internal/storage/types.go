package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// arrayValue encodes a string slice for the dialect's array column.
func (d Dialect) arrayValue(values []string) driver.Valuer {
	if values == nil {
		values = []string{}
	}
	if d == Postgres {
		return pq.StringArray(values)
	}
	return jsonArray(values)
}

type jsonArray []string

func (a jsonArray) Value() (driver.Value, error) {
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// stringList scans either a Postgres text[] or a JSON array.
type stringList []string

func (l *stringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = []string{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into string list", src)
	}

	if len(raw) > 0 && raw[0] == '[' {
		var out []string
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode json array: %w", err)
		}
		if out == nil {
			out = []string{}
		}
		*l = out
		return nil
	}

	var arr pq.StringArray
	if err := arr.Scan(raw); err != nil {
		return err
	}
	if arr == nil {
		arr = pq.StringArray{}
	}
	*l = stringList(arr)
	return nil
}

func papersToStrings(papers []domain.GSPaper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = string(p)
	}
	return out
}

func stringsToPapers(in []string) []domain.GSPaper {
	out := make([]domain.GSPaper, 0, len(in))
	for _, s := range in {
		if p, ok := domain.ParseGSPaper(s); ok {
			out = append(out, p)
		}
	}
	return out
}
