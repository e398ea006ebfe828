package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"hallbook/pkg/logger"
	"hallbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as a field -> message map for API responses.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type BookingValidator struct {
	validate *validator.Validate
	loc        *time.Location
	now        func() time.Time
	rejectPast bool
	logger     *logger.Logger
}

func NewBookingValidator(loc *time.Location, log *logger.Logger) *BookingValidator {
	v := validator.New()
	bv := &BookingValidator{
		validate: v,
		loc:      loc,
		now:      time.Now,
		logger:   log,
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("booking_date", bv.validateBookingDate); err != nil {
		log.Fatal("Failed to register 'booking_date' validator", "error", err)
	}

	log.Info("Booking validator initialized successfully", "timezone", loc.String())

	return bv
}

// SetNow replaces the clock used for the past-date check.
func (v *BookingValidator) SetNow(now func() time.Time) {
	v.now = now
}

// RejectPastDates makes ValidateCreate refuse days before today in the
// booking zone. Off by default.
func (v *BookingValidator) RejectPastDates(enabled bool) {
	v.rejectPast = enabled
}

func (v *BookingValidator) validateBookingDate(fl validator.FieldLevel) bool {
	_, err := model.ParseBookingDate(fl.Field().String(), v.loc)
	return err == nil
}

// ValidateCreate checks the request shape and returns the normalized booking
// day. Past days are refused only when RejectPastDates is enabled.
func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) (time.Time, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return time.Time{}, v.translateValidationErrors(validationErrs)
		}
		return time.Time{}, err
	}

	day, _ := model.ParseBookingDate(req.Date, v.loc)
	if v.rejectPast && day.Before(model.StartOfDay(v.now(), v.loc)) {
		return time.Time{}, ValidationErrors{
			ValidationError{
				Field:   "date",
				Message: "date cannot be in the past",
			},
		}
	}

	return day, nil
}

func (v *BookingValidator) ValidateDecide(req *model.DecideRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "booking_date":
			message = fmt.Sprintf("%s must be a calendar day (YYYY-MM-DD) or an RFC 3339 timestamp", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
