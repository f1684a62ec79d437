package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
)

const dateLayout = "2006-01-02"

// orderFilterFromQuery reads the list filters from the query string. A bare
// date in `to` includes that whole day.
func orderFilterFromQuery(query url.Values) (db.OrderFilter, error) {
	filter := db.OrderFilter{
		Search: strings.TrimSpace(query.Get("q")),
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			return filter, &requestError{message: "Invalid status", fields: map[string]string{"status": "oneof"}}
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("payment_status")); raw != "" {
		status, err := models.ParsePaymentStatus(raw)
		if err != nil {
			return filter, &requestError{message: "Invalid payment status", fields: map[string]string{"payment_status": "oneof"}}
		}
		filter.PaymentStatus = status
	}

	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, _, err := parseQueryTime(raw)
		if err != nil {
			return filter, &requestError{message: "Invalid from date", fields: map[string]string{"from": "datetime"}}
		}
		filter.CreatedFrom = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, dateOnly, err := parseQueryTime(raw)
		if err != nil {
			return filter, &requestError{message: "Invalid to date", fields: map[string]string{"to": "datetime"}}
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1)
		}
		filter.CreatedTo = to
	}

	var err error
	if filter.Limit, err = queryInt(query, "limit", 0, 200); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(query, "offset", 0, 1<<30); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseQueryTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

func queryInt(query url.Values, name string, minValue, maxValue int) (int, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < minValue || value > maxValue {
		return 0, &requestError{message: "Invalid " + name, fields: map[string]string{name: "number"}}
	}
	return value, nil
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeOrderList(w, r, filter)
}

func (h *Handlers) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	order, err := h.fulfillment.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handlers) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.fulfillment.UpdateStatus(r.Context(), orderID, models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type bulkStatusRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1,max=200"`
	Status   string      `json:"status" validate:"required"`
}

// AdminBulkStatus applies one status to every listed order, or to none.
func (h *Handlers) AdminBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	orders, err := h.fulfillment.BulkUpdateStatus(r.Context(), req.OrderIDs, models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":  orders,
		"updated": len(orders),
	})
}

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=128"`
	Carrier        string `json:"carrier" validate:"max=64"`
}

func (h *Handlers) AdminUpdateTracking(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req trackingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	update, err := h.fulfillment.UpdateTracking(r.Context(), orderID, req.TrackingNumber, req.Carrier)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":        update.Order,
		"tracking_url": update.TrackingURL,
	})
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

func (h *Handlers) AdminUpdateNotes(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.fulfillment.UpdateNotes(r.Context(), orderID, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handlers) AdminRefund(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.fulfillment.Refund(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handlers) AdminListAttendees(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	attendees, err := h.events.ListAttendees(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if attendees == nil {
		attendees = []models.EventAttendee{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendees": attendees})
}

type checkInRequest struct {
	TicketCode string `json:"ticket_code" validate:"required,max=128"`
}

func (h *Handlers) AdminCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	attendee, err := h.events.CheckIn(r.Context(), req.TicketCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendee": attendee})
}
