package repo

import (
	"context"

	"ofs-bridge/internal/model"
)

// Repository is the exchange journal.
type Repository interface {
	// SaveExchange appends one exchange and fills in its ID.
	SaveExchange(ctx context.Context, e *model.Exchange) error

	// RecentExchanges returns up to limit exchanges, most recent first.
	RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error)

	// Close closes the repository connection.
	Close() error
}
