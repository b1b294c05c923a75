package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed unique identifier, e.g. "sale-1b4e28ba-...".
// The prefix makes ids self-describing in logs and backups.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
