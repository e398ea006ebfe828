package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	HasActiveBooking(ctx context.Context, hallID string, start, end time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, paymentAcknowledged bool, at time.Time) error
	FindByHalls(ctx context.Context, hallIDs []string) ([]*model.Booking, error)
	FindByConsumer(ctx context.Context, consumerID string) ([]*model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type bookingDocument struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty"`
	ConsumerID          primitive.ObjectID  `bson:"consumer_id"`
	HallID              primitive.ObjectID  `bson:"hall_id"`
	Date                time.Time           `bson:"date"`
	Day                 string              `bson:"day"`
	Status              model.BookingStatus `bson:"status"`
	PaymentAcknowledged bool                `bson:"payment_acknowledged"`
	Active              bool                `bson:"active"`
	CreatedAt           time.Time           `bson:"created_at"`
	UpdatedAt           time.Time           `bson:"updated_at"`
}

func (d *bookingDocument) toModel() *model.Booking {
	return &model.Booking{
		ID:                  d.ID.Hex(),
		ConsumerID:          d.ConsumerID.Hex(),
		HallID:              d.HallID.Hex(),
		Date:                d.Date,
		Day:                 d.Day,
		Status:              d.Status,
		PaymentAcknowledged: d.PaymentAcknowledged,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(BookingsCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// Create inserts a shortlisted booking. A duplicate key on the active
// (hall_id, day) index is reported as ErrDateTaken.
func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	consumerID, err := toObjectID(booking.ConsumerID)
	if err != nil {
		return err
	}
	hallID, err := toObjectID(booking.HallID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bookingDocument{
		ConsumerID:          consumerID,
		HallID:              hallID,
		Date:                booking.Date,
		Day:                 booking.Day,
		Status:              booking.Status,
		PaymentAcknowledged: booking.PaymentAcknowledged,
		Active:              booking.Status.Active(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDateTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := toObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc bookingDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return doc.toModel(), nil
}

func (r *mongoBookingRepository) HasActiveBooking(ctx context.Context, hallID string, start, end time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	hallOID, err := toObjectID(hallID)
	if err != nil {
		return false, err
	}

	filter := bson.M{
		"hall_id": hallOID,
		"date":    bson.M{"$gte": start, "$lt": end},
		"status": bson.M{"$in": []model.BookingStatus{
			model.BookingStatusShortlisted,
			model.BookingStatusConfirmed,
		}},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus moves a booking from one status to another only if it is
// still in from. A miss on an existing booking returns ErrStaleTransition.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, paymentAcknowledged bool, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := toObjectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":               to,
			"payment_acknowledged": paymentAcknowledged,
			"active":               to.Active(),
			"updated_at":           at.UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if err != nil {
			return fmt.Errorf("failed to re-read booking: %w", err)
		}
		if count == 0 {
			return bookingserrors.ErrNotFound
		}
		return bookingserrors.ErrStaleTransition
	}

	return nil
}

func (r *mongoBookingRepository) FindByHalls(ctx context.Context, hallIDs []string) ([]*model.Booking, error) {
	if len(hallIDs) == 0 {
		return []*model.Booking{}, nil
	}
	oids, err := toObjectIDs(hallIDs)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"hall_id": bson.M{"$in": oids}})
}

func (r *mongoBookingRepository) FindByConsumer(ctx context.Context, consumerID string) ([]*model.Booking, error) {
	oid, err := toObjectID(consumerID)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"consumer_id": oid})
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	bookings := make([]*model.Booking, 0, len(docs))
	for i := range docs {
		bookings = append(bookings, docs[i].toModel())
	}
	return bookings, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
