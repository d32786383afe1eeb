package booking

import (
	"context"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"
)

// OwnerOf returns the user id that owns bookingID.
func OwnerOf(ctx context.Context, q db.Querier, bookingID string, opts ...retry.Option) (string, error) {
	owner, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		var userID string
		err := q.QueryRow(ctx, `SELECT user_id FROM trip_bookings WHERE id=$1`, bookingID).Scan(&userID)
		return userID, err
	}, opts...)
	if err != nil {
		return "", apperr.Normalize(err)
	}
	return owner, nil
}

// RequireOwner fails with not found unless userID owns bookingID, so other
// users' bookings are indistinguishable from missing ones.
func RequireOwner(ctx context.Context, q db.Querier, userID, bookingID string, opts ...retry.Option) error {
	owner, err := OwnerOf(ctx, q, bookingID, opts...)
	if err != nil {
		return err
	}
	if owner != userID {
		return apperr.NotFound("")
	}
	return nil
}
