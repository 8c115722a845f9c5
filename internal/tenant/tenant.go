// Package tenant provides the isolation handle threaded through every
// core operation. A zero-value Handle is never valid; handles are minted
// only by Resolve (from an id string it validates) and New (from an
// already-parsed UUID), so forgetting one is caught at the repository
// boundary rather than silently scoping a query to nothing.
package tenant

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle is an opaque, comparable tenant scoping key. It carries no
// behavior of its own — it exists so storage code can require one in
// every signature and reject its absence.
type Handle struct {
	id   uuid.UUID
	name string
}

// Zero is the invalid handle. Comparing against it is how repositories
// detect a missing tenant.
var Zero = Handle{}

// Resolve parses a tenant identifier string into a Handle.
func Resolve(id string) (Handle, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return Zero, fmt.Errorf("resolve tenant handle: %w", err)
	}
	return Handle{id: u}, nil
}

// New mints a handle from an already-validated UUID, e.g. when a row
// read back from storage needs to be re-wrapped. name is an optional
// display label used only in logs.
func New(id uuid.UUID, name string) Handle {
	return Handle{id: id, name: name}
}

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

// ID returns the underlying tenant UUID.
func (h Handle) ID() uuid.UUID {
	return h.id
}

// Name returns the display label, if any was attached at New.
func (h Handle) Name() string {
	return h.name
}

// String implements fmt.Stringer for logging.
func (h Handle) String() string {
	if h.IsZero() {
		return "tenant:unset"
	}
	return h.id.String()
}
