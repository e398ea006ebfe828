package handler

import (
	"net/http"

	"hallbook/internal/bookings/service"
	"hallbook/pkg/auth"
	apperrors "hallbook/pkg/errors"
	httputil "hallbook/pkg/http"
	"hallbook/pkg/logger"
	"hallbook/pkg/middleware"
	"hallbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CreateBookingResponse struct {
	BookingID string         `json:"bookingId"`
	Booking   *model.Booking `json:"booking"`
}

type DecisionResponse struct {
	Message string         `json:"message"`
	Booking *model.Booking `json:"booking"`
}

type BookingListResponse struct {
	Bookings []*model.BookingView `json:"bookings"`
}

type BookingHandler struct {
	service       service.BookingService
	receipts      service.ReceiptService
	publicReceipt bool
	log           *logger.Logger
}

func NewBookingHandler(bookings service.BookingService, receipts service.ReceiptService, publicReceipt bool, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:       bookings,
		receipts:      receipts,
		publicReceipt: publicReceipt,
		log:           log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), principal(r), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, CreateBookingResponse{BookingID: booking.ID, Booking: booking}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Decide(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.DecideRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Decide", err)
		return
	}

	decision, err := h.service.Decide(r.Context(), principal(r), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Decide", err)
		return
	}

	if err := httputil.WriteSuccess(w, DecisionResponse{Message: decision.Message, Booking: decision.Booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "Decide", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetByID(r.Context(), principal(r), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListForOwner(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	views, err := h.service.ListForOwner(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, "ListForOwner", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingListResponse{Bookings: views}); err != nil {
		h.log.Error("failed to write success response", "handler", "ListForOwner", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListForConsumer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	views, err := h.service.ListForConsumer(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, "ListForConsumer", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingListResponse{Bookings: views}); err != nil {
		h.log.Error("failed to write success response", "handler", "ListForConsumer", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var caller *auth.Principal
	if p, ok := auth.FromContext(r.Context()); ok {
		caller = &p
	}

	receipt, err := h.receipts.Render(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Receipt", err)
		return
	}

	if err := httputil.WriteAttachment(w, receipt.ContentType, receipt.Filename, receipt.Content); err != nil {
		h.log.Error("failed to write receipt", "handler", "Receipt", "operation", "WriteAttachment", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/book", middleware.RequireRole(auth.RoleConsumer, h.Create))
	router.GET("/consumer/bookings", middleware.RequireRole(auth.RoleConsumer, h.ListForConsumer))
	router.GET("/owner/bookings", middleware.RequireRole(auth.RoleOwner, h.ListForOwner))
	router.GET("/booking/:id", middleware.RequireAuth(h.GetByID))
	router.POST("/booking/:id/decide", middleware.RequireRole(auth.RoleOwner, h.Decide))

	receipt := middleware.RequireAuth(h.Receipt)
	if h.publicReceipt {
		receipt = h.Receipt
	}
	router.GET("/booking/:id/receipt", receipt)

	router.POST("/user/book-hall", middleware.RequireRole(auth.RoleConsumer, h.Create))
	router.POST("/user/confirm-booking/:id", middleware.RequireRole(auth.RoleOwner, h.Decide))
	router.GET("/user/confirm-booking/:id", receipt)
	router.GET("/user/owner-bookings", middleware.RequireRole(auth.RoleOwner, h.ListForOwner))
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if appErr := apperrors.AsAppError(err); appErr.StatusCode() >= http.StatusInternalServerError {
		h.log.Error("request failed", "handler", handler, "error", err)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

// principal is only called behind RequireAuth or RequireRole.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
