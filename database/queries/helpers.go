package queries

import (
	"database/sql"
	"encoding/json"
	"time"
)

const dbQueryTimeout = 5 * time.Second

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

func pointerToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt32ToPointer(ni sql.NullInt32) *int {
	if ni.Valid {
		n := int(ni.Int32)
		return &n
	}
	return nil
}

func pointerToNullInt32(n *int) sql.NullInt32 {
	if n == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*n), Valid: true}
}

func nullInt64ToPointer(ni sql.NullInt64) *int64 {
	if ni.Valid {
		n := ni.Int64
		return &n
	}
	return nil
}

// marshalJSON сериализует значение для JSONB-колонки; nil → "{}".
func marshalJSON(v any) []byte {
	if v == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// unmarshalJSON десериализует JSONB-колонку, молча терпя NULL.
func unmarshalJSON(raw []byte, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
