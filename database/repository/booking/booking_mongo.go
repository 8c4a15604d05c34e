package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"tourly/config"
	"tourly/database"
	"tourly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingRepo implements BookingRepository using MongoDB. Slot
// exclusivity is enforced with a multi-document transaction (overlap count
// plus insert/update inside one session), and per-booking writes use a
// version-filtered compare-and-swap.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo constructs a new instance of MongoBookingRepo.
func NewMongoBookingRepo() BookingRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoBookingRepo{coll: db.Collection("tour_bookings")}
}

const (
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond
)

// withRetry retries transient storage failures with linear backoff. Domain
// rejections (conflict, stale, not found) pass through untouched.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if models.CodeOf(err) != "" {
			return err
		}
		if !mongo.IsNetworkError(err) && !mongo.IsTimeout(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// blockingOverlapFilter matches bookings that hold [start, end) against the
// given agent/property calendar.
func blockingOverlapFilter(agentID, propertyID string, start, end time.Time, excludeID string) bson.M {
	filter := bson.M{
		"agent_id":    agentID,
		"property_id": propertyID,
		"status": bson.M{"$in": []models.BookingStatus{
			models.StatusPending, models.StatusConfirmed, models.StatusRescheduleRequested,
		}},
		"start": bson.M{"$lt": end},
		"end":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func (repo *MongoBookingRepo) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	client := repo.coll.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}

func (repo *MongoBookingRepo) Create(ctx context.Context, draft *models.TourBooking) (*models.TourBooking, error) {
	now := time.Now()
	b := draft.Clone()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	err := withRetry(ctx, func(ctx context.Context) error {
		return repo.inTransaction(ctx, func(sc mongo.SessionContext) error {
			n, err := repo.coll.CountDocuments(sc,
				blockingOverlapFilter(b.AgentID, b.PropertyID, b.Start, b.End, ""))
			if err != nil {
				return fmt.Errorf("overlap check failed: %w", err)
			}
			if n > 0 {
				return models.ErrSlotConflict("the %s slot was just taken for this property", b.Start.Format(time.RFC3339))
			}
			if _, err := repo.coll.InsertOne(sc, b); err != nil {
				return fmt.Errorf("insert booking failed: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (repo *MongoBookingRepo) ApplyTransition(ctx context.Context, bookingID string, m Mutation) (*models.TourBooking, error) {
	var updated *models.TourBooking

	err := withRetry(ctx, func(ctx context.Context) error {
		return repo.inTransaction(ctx, func(sc mongo.SessionContext) error {
			var current models.TourBooking
			if err := repo.coll.FindOne(sc, bson.M{"id": bookingID}).Decode(&current); err != nil {
				if err == mongo.ErrNoDocuments {
					return models.ErrNotFound("booking %s not found", bookingID)
				}
				return fmt.Errorf("fetch booking %s failed: %w", bookingID, err)
			}
			if current.Version != m.ExpectedVersion {
				return models.ErrStale("booking %s was modified concurrently, please re-read and retry", bookingID)
			}

			newStart, newEnd := current.Start, current.End
			if m.Start != nil {
				newStart = *m.Start
			}
			if m.End != nil {
				newEnd = *m.End
			}
			if m.changesInterval() {
				n, err := repo.coll.CountDocuments(sc,
					blockingOverlapFilter(current.AgentID, current.PropertyID, newStart, newEnd, bookingID))
				if err != nil {
					return fmt.Errorf("overlap check failed: %w", err)
				}
				if n > 0 {
					return models.ErrSlotConflict("the %s slot was just taken for this property", newStart.Format(time.RFC3339))
				}
			}

			set := bson.M{
				"start":      newStart,
				"end":        newEnd,
				"updated_at": time.Now(),
			}
			if m.Status != nil {
				set["status"] = *m.Status
			}
			if m.MeetingLink != nil {
				set["meeting_link"] = *m.MeetingLink
			}
			if m.ProposedStart != nil {
				set["proposed_start"] = *m.ProposedStart
			}

			update := bson.M{
				"$set": set,
				"$inc": bson.M{"version": 1},
			}
			if m.ClearProposedStart && m.ProposedStart == nil {
				update["$unset"] = bson.M{"proposed_start": ""}
			}
			push := bson.M{}
			if len(m.AppendNotes) > 0 {
				push["notes"] = bson.M{"$each": m.AppendNotes}
			}
			if m.AddParticipant != nil {
				push["participants"] = *m.AddParticipant
			}
			if len(push) > 0 {
				update["$push"] = push
			}
			if m.RemoveParticipant != "" {
				update["$pull"] = bson.M{"participants": bson.M{"name": m.RemoveParticipant}}
			}

			// CAS: the version in the filter rejects any concurrent commit
			// that slipped in after the read above.
			res := repo.coll.FindOneAndUpdate(sc,
				bson.M{"id": bookingID, "version": m.ExpectedVersion},
				update,
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			)
			var b models.TourBooking
			if err := res.Decode(&b); err != nil {
				if err == mongo.ErrNoDocuments {
					return models.ErrStale("booking %s was modified concurrently, please re-read and retry", bookingID)
				}
				return fmt.Errorf("apply transition to booking %s failed: %w", bookingID, err)
			}
			updated = &b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (repo *MongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.TourBooking, error) {
	var b models.TourBooking
	err := withRetry(ctx, func(ctx context.Context) error {
		if err := repo.coll.FindOne(ctx, bson.M{"id": bookingID}).Decode(&b); err != nil {
			if err == mongo.ErrNoDocuments {
				return models.ErrNotFound("booking %s not found", bookingID)
			}
			return fmt.Errorf("fetch booking %s failed: %w", bookingID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (repo *MongoBookingRepo) ListForScope(ctx context.Context, q ScopeQuery) ([]models.TourBooking, error) {
	filter := bson.M{}
	if q.AgentID != "" {
		filter["agent_id"] = q.AgentID
	}
	if q.PropertyID != "" {
		filter["property_id"] = q.PropertyID
	}
	if q.RequesterID != "" {
		filter["requester_id"] = q.RequesterID
	}
	if !q.From.IsZero() {
		filter["end"] = bson.M{"$gt": q.From}
	}
	if !q.To.IsZero() {
		filter["start"] = bson.M{"$lt": q.To}
	}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}

	var out []models.TourBooking
	err := withRetry(ctx, func(ctx context.Context) error {
		cursor, err := repo.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
		if err != nil {
			return fmt.Errorf("list bookings failed: %w", err)
		}
		defer cursor.Close(ctx)

		out = out[:0]
		for cursor.Next(ctx) {
			var b models.TourBooking
			if err := cursor.Decode(&b); err != nil {
				return fmt.Errorf("decode booking failed: %w", err)
			}
			out = append(out, b)
		}
		return cursor.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
