package output

import (
	"context"

	"github.com/crimson-sun/kartavya/internal/model"
)

// Output defines the interface for report event destinations.
type Output interface {
	Write(ctx context.Context, event model.Event) error
	Close() error
}
