package store

import "context"

// New picks the backing store from the database URL: PostgreSQL when one is
// configured, an in-process store otherwise.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemory(), nil
	}
	return NewPostgres(ctx, databaseURL)
}
