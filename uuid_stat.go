package columnar

import "github.com/google/uuid"

// FormatUUIDValue interprets a 16-byte raw value (typically a column's
// min/max statistic) as a UUID, for columns whose schema element carries the
// UUID logical type annotation. ok is false for any other byte length.
func FormatUUIDValue(raw []byte) (uuid.UUID, bool) {
	if len(raw) != 16 {
		return uuid.UUID{}, false
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id, true
}
