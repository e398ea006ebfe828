package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/pkg/config"
	"hallbook/pkg/model"
	"hallbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HallRepository is the booking service's view of the hall catalog.
type HallRepository interface {
	FindByID(ctx context.Context, id string) (*model.Hall, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Hall, error)
	FindIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	AppendBookedDate(ctx context.Context, hallID string, date, dayStart, dayEnd time.Time) (bool, error)
}

type hallDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	Name             string             `bson:"name"`
	Description      string             `bson:"description,omitempty"`
	OwnerID          primitive.ObjectID `bson:"owner_id"`
	Location         hallLocation       `bson:"location"`
	VegPlatePrice    float64            `bson:"veg_plate_price"`
	NonVegPlatePrice float64            `bson:"nonveg_plate_price"`
	RoomPrice        float64            `bson:"room_price,omitempty"`
	Accommodation    int                `bson:"accommodation"`
	Amenities        []string           `bson:"amenities,omitempty"`
	Phone            string             `bson:"phone,omitempty"`
	BookedDates      []time.Time        `bson:"booked_dates,omitempty"`
}

type hallLocation struct {
	Address string `bson:"address,omitempty"`
	City    string `bson:"city,omitempty"`
	State   string `bson:"state,omitempty"`
}

func (d *hallDocument) toModel() *model.Hall {
	return &model.Hall{
		ID:          d.ID.Hex(),
		Name:        sanitizer.NormalizeName(d.Name),
		Description: d.Description,
		OwnerID:     d.OwnerID.Hex(),
		Location: model.Location{
			Address: sanitizer.TrimAndNormalize(d.Location.Address),
			City:    sanitizer.TrimAndNormalize(d.Location.City),
			State:   sanitizer.TrimAndNormalize(d.Location.State),
		},
		VegPlatePrice:    d.VegPlatePrice,
		NonVegPlatePrice: d.NonVegPlatePrice,
		RoomPrice:        d.RoomPrice,
		Accommodation:    d.Accommodation,
		Amenities:        sanitizer.NormalizeList(d.Amenities),
		Phone:            sanitizer.NormalizePhone(d.Phone),
		BookedDates:      d.BookedDates,
	}
}

type mongoHallRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoHallRepository(cfg *config.Config) HallRepository {
	return &mongoHallRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(HallsCollection),
	}
}

func (r *mongoHallRepository) FindByID(ctx context.Context, id string) (*model.Hall, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := toObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc hallDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrHallNotFound
		}
		return nil, fmt.Errorf("failed to find hall: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoHallRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Hall, error) {
	halls := make(map[string]*model.Hall, len(ids))
	if len(ids) == 0 {
		return halls, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oids, err := toObjectIDs(ids)
	if err != nil {
		return nil, err
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find halls: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []hallDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode halls: %w", err)
	}
	for i := range docs {
		hall := docs[i].toModel()
		halls[hall.ID] = hall
	}
	return halls, nil
}

func (r *mongoHallRepository) FindIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := toObjectID(ownerID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find owner halls: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode owner halls: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

// AppendBookedDate pushes date onto the hall's booked_dates unless an entry
// already falls in [dayStart, dayEnd). It reports whether a date was added.
func (r *mongoHallRepository) AppendBookedDate(ctx context.Context, hallID string, date, dayStart, dayEnd time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := toObjectID(hallID)
	if err != nil {
		return false, err
	}

	filter := bson.M{
		"_id": oid,
		"booked_dates": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"$gte": dayStart,
			"$lt":  dayEnd,
		}}},
	}
	update := bson.M{"$push": bson.M{"booked_dates": date}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to append booked date: %w", err)
	}
	if result.ModifiedCount > 0 {
		return true, nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to re-read hall: %w", err)
	}
	if count == 0 {
		return false, bookingserrors.ErrHallNotFound
	}
	return false, nil
}
