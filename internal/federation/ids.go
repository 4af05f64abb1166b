package federation

import "github.com/google/uuid"

// IDGenerator produces execution IDs.
// Implemented by UUIDv7Generator (production) and testutil.FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 execution IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort by
// creation time in history listings and logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
