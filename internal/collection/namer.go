package collection

import "github.com/google/uuid"

// Namer generates unique layer names.
type Namer interface {
	Name(prefix string) string
}

// UUIDNamer names layers "<prefix>-<uuidv7>". UUIDv7 embeds a timestamp,
// so names sort by creation time.
//
// Stateless and safe for concurrent use.
type UUIDNamer struct{}

// Name returns a fresh name for prefix. Panics if UUID generation fails.
func (UUIDNamer) Name(prefix string) string {
	return prefix + "-" + uuid.Must(uuid.NewV7()).String()
}
