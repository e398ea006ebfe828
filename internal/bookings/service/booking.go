package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/internal/bookings/repository"
	"hallbook/internal/bookings/validator"
	"hallbook/pkg/auth"
	"hallbook/pkg/config"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Notifier delivers templated emails. Implementations run compose and the
// delivery off the caller's goroutine and report failures through their own
// logging.
type Notifier interface {
	Dispatch(ctx context.Context, compose model.NotificationComposer)
}

type BookingService interface {
	Create(ctx context.Context, principal auth.Principal, req *model.CreateBookingRequest) (*model.Booking, error)
	Decide(ctx context.Context, principal auth.Principal, bookingID string, req *model.DecideRequest) (*model.Decision, error)
	GetByID(ctx context.Context, principal auth.Principal, id string) (*model.BookingView, error)
	ListForOwner(ctx context.Context, principal auth.Principal) ([]*model.BookingView, error)
	ListForConsumer(ctx context.Context, principal auth.Principal) ([]*model.BookingView, error)
}

type bookingService struct {
	bookings  repository.BookingRepository
	halls     repository.HallRepository
	users     repository.UserRepository
	guard     *AvailabilityGuard
	validator *validator.BookingValidator
	notifier  Notifier
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	bookings repository.BookingRepository,
	halls repository.HallRepository,
	users repository.UserRepository,
	validator *validator.BookingValidator,
	notifier Notifier,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		bookings:  bookings,
		halls:     halls,
		users:     users,
		guard:     NewAvailabilityGuard(bookings, cfg.Location),
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, principal auth.Principal, req *model.CreateBookingRequest) (*model.Booking, error) {
	if !principal.IsConsumer() {
		return nil, apperrors.Forbidden("Only consumers can book halls")
	}

	day, err := s.validator.ValidateCreate(req)
	if err != nil {
		s.cfg.Log.Warn("Booking validation failed", "consumer_id", principal.UserID, "error", err)
		return nil, validationError("Invalid booking request", err)
	}

	hall, err := s.halls.FindByID(ctx, req.HallID)
	if err != nil {
		return nil, s.mapHallError(err, req.HallID)
	}

	available, err := s.guard.IsDateAvailable(ctx, hall.ID, day)
	if err != nil {
		s.cfg.Log.Error("Availability check failed", "hall_id", hall.ID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}
	if !available {
		return nil, dateTakenError(hall.Name, model.DayKey(day, s.cfg.Location))
	}

	booking := &model.Booking{
		ConsumerID: principal.UserID,
		HallID:     hall.ID,
		Date:       day,
		Day:        model.DayKey(day, s.cfg.Location),
		Status:     model.BookingStatusShortlisted,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrDateTaken):
			s.cfg.Log.Info("Lost booking race on insert", "hall_id", hall.ID, "day", booking.Day)
			return nil, dateTakenError(hall.Name, booking.Day)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid consumer ID")
		default:
			s.cfg.Log.Error("Failed to create booking", "hall_id", hall.ID, "error", err)
			return nil, apperrors.Internal("Failed to create booking", err)
		}
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"hall_id", hall.ID,
		"consumer_id", booking.ConsumerID,
		"day", booking.Day,
	)

	s.notifyOwner(ctx, hall, booking)
	return booking, nil
}

func (s *bookingService) Decide(ctx context.Context, principal auth.Principal, bookingID string, req *model.DecideRequest) (*model.Decision, error) {
	if err := s.validator.ValidateDecide(req); err != nil {
		return nil, invalidInputError("paymentReceived must be a boolean", err)
	}
	target := model.DecisionStatus(*req.PaymentReceived)

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, s.mapBookingError(err, bookingID)
	}

	hall, err := s.halls.FindByID(ctx, booking.HallID)
	if err != nil {
		return nil, s.mapHallError(err, booking.HallID)
	}

	if hall.OwnerID != principal.UserID {
		s.cfg.Log.Warn("Rejected decision from non-owner",
			"booking_id", booking.ID,
			"hall_id", hall.ID,
			"caller_id", principal.UserID,
		)
		return nil, apperrors.Forbidden("Only the hall owner can decide on this booking")
	}

	changed, err := s.applyDecision(ctx, booking, target)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking decided",
		"booking_id", booking.ID,
		"hall_id", hall.ID,
		"status", booking.Status,
		"changed", changed,
	)

	s.notifyConsumer(ctx, hall, booking)

	return &model.Decision{
		Booking: booking,
		Changed: changed,
		Message: decisionMessage(booking.Status, changed),
	}, nil
}

// applyDecision drives booking to target. If a concurrent request moves the
// booking first, the fresh state is re-evaluated once: converging on the same
// terminal state is a success, a conflicting one is InvalidState.
func (s *bookingService) applyDecision(ctx context.Context, booking *model.Booking, target model.BookingStatus) (bool, error) {
	const maxAttempts = 2

	for attempt := 1; ; attempt++ {
		changed, err := booking.Status.Transition(target)
		if err != nil {
			return false, apperrors.InvalidState(err.Error())
		}

		at := s.now()
		err = s.commitDecision(ctx, booking, target, changed, at)
		if err == nil {
			if changed {
				booking.Status = target
				booking.PaymentAcknowledged = target == model.BookingStatusConfirmed
				booking.UpdatedAt = at.UTC().Truncate(time.Millisecond)
			}
			return changed, nil
		}

		if !errors.Is(err, bookingserrors.ErrStaleTransition) || attempt == maxAttempts {
			return false, s.mapBookingError(err, booking.ID)
		}

		fresh, err := s.bookings.FindByID(ctx, booking.ID)
		if err != nil {
			return false, s.mapBookingError(err, booking.ID)
		}
		*booking = *fresh
	}
}

// commitDecision writes the status change and, for confirmations, the hall
// calendar entry in one transaction. The calendar append runs even when the
// status is already confirmed so a partially applied earlier call is repaired.
func (s *bookingService) commitDecision(ctx context.Context, booking *model.Booking, target model.BookingStatus, changed bool, at time.Time) error {
	if target == model.BookingStatusRejected {
		if !changed {
			return nil
		}
		return s.bookings.UpdateStatus(ctx, booking.ID, model.BookingStatusShortlisted, target, false, at)
	}

	start, end := model.DayBounds(booking.Date, s.cfg.Location)
	return s.bookings.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if changed {
			if err := s.bookings.UpdateStatus(sessCtx, booking.ID, model.BookingStatusShortlisted, target, true, at); err != nil {
				return err
			}
		}

		appended, err := s.halls.AppendBookedDate(sessCtx, booking.HallID, start, start, end)
		if err != nil {
			return err
		}
		if appended {
			s.cfg.Log.Info("Hall calendar updated", "booking_id", booking.ID, "hall_id", booking.HallID, "day", booking.Day)
		}
		return nil
	})
}

func (s *bookingService) GetByID(ctx context.Context, principal auth.Principal, id string) (*model.BookingView, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapBookingError(err, id)
	}

	hall, err := s.halls.FindByID(ctx, booking.HallID)
	if err != nil {
		return nil, s.mapHallError(err, booking.HallID)
	}

	if principal.UserID != booking.ConsumerID && principal.UserID != hall.OwnerID {
		return nil, apperrors.Forbidden("You do not have access to this booking")
	}

	view := &model.BookingView{Booking: *booking, Hall: hallSummary(hall)}
	consumer, err := s.users.FindByID(ctx, booking.ConsumerID)
	switch {
	case err == nil:
		view.Consumer = userSummary(consumer)
	case !errors.Is(err, bookingserrors.ErrUserNotFound):
		return nil, apperrors.Internal("Failed to load consumer", err)
	}
	return view, nil
}

func (s *bookingService) ListForOwner(ctx context.Context, principal auth.Principal) ([]*model.BookingView, error) {
	if !principal.IsOwner() {
		return nil, apperrors.Forbidden("Only hall owners can list owner bookings")
	}

	hallIDs, err := s.halls.FindIDsByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, s.mapListError(err, "owner halls")
	}
	if len(hallIDs) == 0 {
		return []*model.BookingView{}, nil
	}

	bookings, err := s.bookings.FindByHalls(ctx, hallIDs)
	if err != nil {
		return nil, s.mapListError(err, "bookings")
	}

	halls, err := s.halls.FindByIDs(ctx, hallIDs)
	if err != nil {
		return nil, s.mapListError(err, "halls")
	}

	users, err := s.users.FindByIDs(ctx, uniqueConsumerIDs(bookings))
	if err != nil {
		return nil, s.mapListError(err, "consumers")
	}

	views := make([]*model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		view := &model.BookingView{Booking: *b}
		if h, ok := halls[b.HallID]; ok {
			view.Hall = &model.HallSummary{ID: h.ID, Name: h.Name}
		}
		if u, ok := users[b.ConsumerID]; ok {
			view.Consumer = userSummary(u)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *bookingService) ListForConsumer(ctx context.Context, principal auth.Principal) ([]*model.BookingView, error) {
	if !principal.IsConsumer() {
		return nil, apperrors.Forbidden("Only consumers have personal bookings")
	}

	bookings, err := s.bookings.FindByConsumer(ctx, principal.UserID)
	if err != nil {
		return nil, s.mapListError(err, "bookings")
	}

	hallIDs := make([]string, 0, len(bookings))
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.HallID]; !ok {
			seen[b.HallID] = struct{}{}
			hallIDs = append(hallIDs, b.HallID)
		}
	}

	halls, err := s.halls.FindByIDs(ctx, hallIDs)
	if err != nil {
		return nil, s.mapListError(err, "halls")
	}

	views := make([]*model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		view := &model.BookingView{Booking: *b}
		if h, ok := halls[b.HallID]; ok {
			view.Hall = hallSummary(h)
		}
		views = append(views, view)
	}
	return views, nil
}

// --- Notifications ---

func (s *bookingService) notifyOwner(ctx context.Context, hall *model.Hall, booking *model.Booking) {
	ownerID, consumerID := hall.OwnerID, booking.ConsumerID
	data := model.NotificationData{
		BookingID: booking.ID,
		HallName:  hall.Name,
		Day:       booking.Day,
		ActionURL: s.cfg.FrontendURL + "/confirm-booking",
	}

	s.notifier.Dispatch(ctx, func(ctx context.Context) (*model.Notification, error) {
		users, err := s.users.FindByIDs(ctx, []string{ownerID, consumerID})
		if err != nil {
			return nil, fmt.Errorf("owner notification for booking %s: %w", data.BookingID, err)
		}

		owner, ok := users[ownerID]
		if !ok {
			s.cfg.Log.Warn("Skipping owner notification, owner not found", "booking_id", data.BookingID, "owner_id", ownerID)
			return nil, nil
		}
		data.OwnerName = owner.Name
		if consumer, ok := users[consumerID]; ok {
			data.ConsumerName = consumer.Name
		}

		return &model.Notification{To: owner.Email, Kind: model.NotificationBookingCreated, Data: data}, nil
	})
}

func (s *bookingService) notifyConsumer(ctx context.Context, hall *model.Hall, booking *model.Booking) {
	consumerID := booking.ConsumerID
	data := model.NotificationData{
		BookingID: booking.ID,
		HallName:  hall.Name,
		Day:       booking.Day,
	}

	kind := model.NotificationBookingRejected
	data.ActionURL = s.cfg.FrontendURL
	if booking.Status == model.BookingStatusConfirmed {
		kind = model.NotificationBookingConfirmed
		data.ActionURL = ReceiptURL(s.cfg.PublicBaseURL, booking.ID)
	}

	s.notifier.Dispatch(ctx, func(ctx context.Context) (*model.Notification, error) {
		consumer, err := s.users.FindByID(ctx, consumerID)
		if errors.Is(err, bookingserrors.ErrUserNotFound) {
			s.cfg.Log.Warn("Skipping consumer notification, consumer not found", "booking_id", data.BookingID, "consumer_id", consumerID)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("consumer notification for booking %s: %w", data.BookingID, err)
		}

		data.ConsumerName = consumer.Name
		return &model.Notification{To: consumer.Email, Kind: kind, Data: data}, nil
	})
}

// ReceiptURL is the download location of a booking's receipt.
func ReceiptURL(baseURL, bookingID string) string {
	return fmt.Sprintf("%s/booking/%s/receipt", baseURL, bookingID)
}

// --- Helpers ---

func (s *bookingService) mapBookingError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrHallNotFound):
		return apperrors.NotFound("Hall")
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrStaleTransition):
		return apperrors.Conflict("Booking was modified concurrently, retry the request")
	default:
		s.cfg.Log.Error("Booking operation failed", "booking_id", id, "error", err)
		return apperrors.Internal("Failed to process booking", err)
	}
}

func (s *bookingService) mapHallError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrHallNotFound):
		return apperrors.NotFoundWithID("Hall", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid hall ID format")
	default:
		s.cfg.Log.Error("Hall lookup failed", "hall_id", id, "error", err)
		return apperrors.Internal("Failed to load hall", err)
	}
}

func (s *bookingService) mapListError(err error, what string) error {
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid user ID")
	}
	s.cfg.Log.Error("Failed to list "+what, "error", err)
	return apperrors.Internal("Failed to retrieve "+what, err)
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func invalidInputError(message string, err error) error {
	appErr := apperrors.InvalidInput(message)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return appErr.WithDetails(verrs.Details())
	}
	return appErr
}

func dateTakenError(hallName, day string) error {
	return apperrors.Conflict(fmt.Sprintf("%s is already booked on %s", hallName, day)).
		WithDetails(map[string]any{"day": day})
}

func decisionMessage(status model.BookingStatus, changed bool) string {
	switch {
	case status == model.BookingStatusConfirmed && changed:
		return "Booking confirmed and date added to the hall calendar"
	case status == model.BookingStatusConfirmed:
		return "Booking already confirmed"
	case changed:
		return "Booking rejected"
	default:
		return "Booking already rejected"
	}
}

func uniqueConsumerIDs(bookings []*model.Booking) []string {
	ids := make([]string, 0, len(bookings))
	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.ConsumerID]; ok {
			continue
		}
		seen[b.ConsumerID] = struct{}{}
		ids = append(ids, b.ConsumerID)
	}
	return ids
}

func hallSummary(h *model.Hall) *model.HallSummary {
	return &model.HallSummary{ID: h.ID, Name: h.Name, Address: formatAddress(h.Location)}
}

func userSummary(u *model.User) *model.UserSummary {
	return &model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func formatAddress(loc model.Location) string {
	out := ""
	for _, part := range []string{loc.Address, loc.City, loc.State} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}
