package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/internal/bookings/validator"
	"hallbook/pkg/auth"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// In-memory store enforcing the same invariants as the Mongo indexes
// ────────────────────────────────────────────────

type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	bookings map[string]*model.Booking
	halls    map[string]*model.Hall
	users    map[string]*model.User
	seq      int
	base     time.Time

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[string]*model.Booking{},
		halls:    map[string]*model.Hall{},
		users:    map[string]*model.User{},
		base:     time.Date(2025, 11, 20, 6, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addUser(name, role string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: primitive.NewObjectID().Hex(), Name: name, Email: name + "@example.com", Role: role}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addHall(name, ownerID string) *model.Hall {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &model.Hall{
		ID:               primitive.NewObjectID().Hex(),
		Name:             name,
		OwnerID:          ownerID,
		Location:         model.Location{Address: "12 Residency Road", City: "Jammu"},
		VegPlatePrice:    450,
		NonVegPlatePrice: 650,
		Accommodation:    300,
	}
	s.halls[h.ID] = h
	return h
}

func (s *memStore) booking(id string) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) bookedDates(hallID string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.halls[hallID].BookedDates...)
}

func (s *memStore) snapshot() (map[string]model.Booking, map[string][]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bookings := make(map[string]model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		bookings[id] = *b
	}
	dates := make(map[string][]time.Time, len(s.halls))
	for id, h := range s.halls {
		dates[id] = append([]time.Time(nil), h.BookedDates...)
	}
	return bookings, dates
}

func (s *memStore) restore(bookings map[string]model.Booking, dates map[string][]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range bookings {
		b := b
		s.bookings[id] = &b
	}
	for id, d := range dates {
		s.halls[id].BookedDates = d
	}
}

type memBookings struct{ s *memStore }

func (r memBookings) Create(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, err := primitive.ObjectIDFromHex(b.ConsumerID); err != nil {
		return bookingserrors.ErrInvalidID
	}
	for _, existing := range r.s.bookings {
		if existing.HallID == b.HallID && existing.Day == b.Day && existing.Status.Active() {
			return bookingserrors.ErrDateTaken
		}
	}

	r.s.seq++
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = r.s.base.Add(time.Duration(r.s.seq) * time.Second)
	b.UpdatedAt = b.CreatedAt
	stored := *b
	r.s.bookings[b.ID] = &stored
	return nil
}

func (r memBookings) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r memBookings) HasActiveBooking(_ context.Context, hallID string, start, end time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.HallID == hallID && !b.Date.Before(start) && b.Date.Before(end) && b.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r memBookings) UpdateStatus(_ context.Context, id string, from, to model.BookingStatus, paid bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if b.Status != from {
		return bookingserrors.ErrStaleTransition
	}
	b.Status = to
	b.PaymentAcknowledged = paid
	b.UpdatedAt = at.UTC().Truncate(time.Millisecond)
	return nil
}

func (r memBookings) FindByHalls(_ context.Context, hallIDs []string) ([]*model.Booking, error) {
	want := map[string]bool{}
	for _, id := range hallIDs {
		want[id] = true
	}
	return r.filter(func(b *model.Booking) bool { return want[b.HallID] }), nil
}

func (r memBookings) FindByConsumer(_ context.Context, consumerID string) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.ConsumerID == consumerID }), nil
}

func (r memBookings) filter(keep func(*model.Booking) bool) []*model.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range r.s.bookings {
		if keep(b) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ExecuteTransaction serializes callers and restores the pre-call state when fn fails.
func (r memBookings) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	bookings, dates := r.s.snapshot()
	if err := fn(mongo.NewSessionContext(ctx, nil)); err != nil {
		r.s.restore(bookings, dates)
		return err
	}
	return nil
}

type memHalls struct{ s *memStore }

func (r memHalls) FindByID(_ context.Context, id string) (*model.Hall, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.halls[id]
	if !ok {
		return nil, bookingserrors.ErrHallNotFound
	}
	out := *h
	out.BookedDates = append([]time.Time(nil), h.BookedDates...)
	return &out, nil
}

func (r memHalls) FindByIDs(_ context.Context, ids []string) (map[string]*model.Hall, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]*model.Hall{}
	for _, id := range ids {
		if h, ok := r.s.halls[id]; ok {
			c := *h
			out[id] = &c
		}
	}
	return out, nil
}

func (r memHalls) FindIDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for id, h := range r.s.halls {
		if h.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memHalls) AppendBookedDate(_ context.Context, hallID string, date, start, end time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendErr != nil {
		return false, r.s.appendErr
	}
	h, ok := r.s.halls[hallID]
	if !ok {
		return false, bookingserrors.ErrHallNotFound
	}
	for _, d := range h.BookedDates {
		if !d.Before(start) && d.Before(end) {
			return false, nil
		}
	}
	h.BookedDates = append(h.BookedDates, date)
	return true, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, bookingserrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) FindByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]*model.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

// ────────────────────────────────────────────────
// Notifier that records what it was asked to send
// ────────────────────────────────────────────────

type sentNotification struct {
	To   string
	Kind model.NotificationKind
	Data model.NotificationData
}

// recordingNotifier runs composers inline unless deferred is set, in which
// case they are queued until flush.
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []sentNotification
	deferred bool
	pending  []model.NotificationComposer
}

func (n *recordingNotifier) Dispatch(_ context.Context, compose model.NotificationComposer) {
	n.mu.Lock()
	if n.deferred {
		n.pending = append(n.pending, compose)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()
	n.run(compose)
}

func (n *recordingNotifier) run(compose model.NotificationComposer) {
	note, err := compose(context.Background())
	if err != nil || note == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{To: note.To, Kind: note.Kind, Data: note.Data})
}

func (n *recordingNotifier) flush() {
	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()
	for _, compose := range pending {
		n.run(compose)
	}
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	store    *memStore
	notifier *recordingNotifier
	cfg      *config.Config
	svc      BookingService
	owner    *model.User
	consumer *model.User
	hall     *model.Hall
}

func (f *fixture) ownerPrincipal() auth.Principal {
	return auth.Principal{UserID: f.owner.ID, Role: auth.RoleOwner}
}

func (f *fixture) consumerPrincipal() auth.Principal {
	return auth.Principal{UserID: f.consumer.ID, Role: auth.RoleConsumer}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Log:           logger.NewNop(),
		Location:      loc,
		PublicBaseURL: "https://api.hallbook.test",
		FrontendURL:   "https://hallbook.test",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig(t)
	store := newMemStore()
	notifier := &recordingNotifier{}

	v := validator.NewBookingValidator(cfg.Location, cfg.Log)

	svc := NewBookingService(memBookings{store}, memHalls{store}, memUsers{store}, v, notifier, cfg).(*bookingService)
	svc.now = func() time.Time { return time.Date(2025, 11, 21, 9, 0, 0, 0, time.UTC) }

	owner := store.addUser("owner", auth.RoleOwner)
	consumer := store.addUser("consumer", auth.RoleConsumer)

	return &fixture{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		svc:      svc,
		owner:    owner,
		consumer: consumer,
		hall:     store.addHall("Royal Palace Banquet", owner.ID),
	}
}

func (f *fixture) book(t *testing.T, p auth.Principal, hallID, day string) *model.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), p, &model.CreateBookingRequest{HallID: hallID, Date: day})
	if err != nil {
		t.Fatalf("Create(%s): %v", day, err)
	}
	return b
}

func boolPtr(v bool) *bool { return &v }
