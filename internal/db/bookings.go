package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/models"
	"courtmatch/internal/store"
)

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return findOne[models.Booking](ctx, s.db.Bookings(), id)
}

// GetBookingsForResource returns confirmed bookings overlapping [from, to),
// earliest first.
func (s *Store) GetBookingsForResource(ctx context.Context, resourceID string, from, to time.Time) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startsAt", Value: 1}})
	cursor, err := s.db.Bookings().Find(ctx, overlapFilter(resourceID, from, to), opts)
	if err != nil {
		return nil, wrapErr("find bookings", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, wrapErr("decode bookings", err)
	}
	return bookings, nil
}

func overlapFilter(resourceID string, from, to time.Time) bson.M {
	return bson.M{
		"resourceId": resourceID,
		"status":     models.BookingStatusConfirmed,
		"startsAt":   bson.M{"$lt": to},
		"endsAt":     bson.M{"$gt": from},
	}
}

// InsertBooking inserts a confirmed booking only if its court is free.
// Bumping the court's lock document first makes every concurrent insert for
// that court write the same document, so all but one transaction abort with
// a write conflict and retry against the committed booking.
func (s *Store) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b.Status != models.BookingStatusConfirmed {
		_, err := s.db.Bookings().InsertOne(ctx, b)
		return wrapErr("insert booking", err)
	}

	return s.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.db.CourtLocks().UpdateOne(ctx,
			bson.M{"_id": b.ResourceID},
			bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"updatedAt": s.now()}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return wrapErr("lock court", err)
		}

		n, err := s.db.Bookings().CountDocuments(ctx, overlapFilter(b.ResourceID, b.StartsAt, b.EndsAt), options.Count().SetLimit(1))
		if err != nil {
			return wrapErr("count overlapping bookings", err)
		}
		if n > 0 {
			return store.ErrOverlap
		}

		_, err = s.db.Bookings().InsertOne(ctx, b)
		return wrapErr("insert booking", err)
	})
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus, at time.Time) (*models.Booking, error) {
	set := bson.M{"status": to}
	if to == models.BookingStatusCancelled {
		set["cancelledAt"] = at
	}
	return conditionalUpdate[models.Booking](ctx, s.db.Bookings(), id, "status", from, bson.M{"$set": set})
}
