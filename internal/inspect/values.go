package inspect

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// normalizeValue maps a pgx row value to a JSON-stable scalar so that the
// same database value always serializes to the same bytes regardless of the
// path it took. Timestamps become RFC 3339 strings, 16-byte values are shown
// as UUIDs, other byte strings in Postgres \x hex notation.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case [16]byte:
		return formatUUID(val)
	case []byte:
		if len(val) == 16 {
			var b [16]byte
			copy(b[:], val)
			return formatUUID(b)
		}
		return fmt.Sprintf(`\x%x`, val)
	case pgtype.Numeric:
		if dv, err := val.Value(); err == nil {
			return dv
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatUUID(b [16]byte) string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15])
}
