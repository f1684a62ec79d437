package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/services"
)

const maxRequestBodyBytes = 1 << 20

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// requestError is a malformed or invalid request body.
type requestError struct {
	message string
	fields  map[string]string
}

func (e *requestError) Error() string {
	return e.message
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads one JSON object into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{message: "Request body is required"}
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{message: "Request body is too large"}
		}
		return &requestError{message: fmt.Sprintf("Invalid JSON: %v", err)}
	}
	return validateRequest(dst)
}

func validateRequest(dst any) error {
	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &requestError{message: "Invalid request"}
	}
	fields := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields[fieldPath(fieldErr.Namespace())] = fieldErr.Tag()
	}
	return &requestError{message: "Validation failed", fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// writeServiceError maps service errors onto status codes. Unexpected errors
// are logged and hidden behind a generic message.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reqErr.message, Fields: reqErr.fields})
		return
	}
	var userErr services.UserError
	if errors.As(err, &userErr) {
		writeError(w, http.StatusBadRequest, userErr.Message)
		return
	}

	status, message := serviceErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
	}
	writeError(w, status, message)
}

func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, services.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, services.ErrCartItemNotFound):
		return http.StatusNotFound, "Cart item not found"
	case errors.Is(err, services.ErrEventNotFound):
		return http.StatusNotFound, "Event not found"
	case errors.Is(err, services.ErrRateNotFound):
		return http.StatusNotFound, "Shipping rate not found"
	case errors.Is(err, services.ErrAuthRequired):
		return http.StatusUnauthorized, "Please sign in to place an order"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrNoPurchasableItems):
		return http.StatusBadRequest, "None of the items in your cart are available"
	case errors.Is(err, services.ErrEventInactive):
		return http.StatusBadRequest, "This event is not open for registration"
	case errors.Is(err, services.ErrEventEnded):
		return http.StatusBadRequest, "This event has already ended"
	case errors.Is(err, services.ErrInsufficientCapacity):
		return http.StatusConflict, "Not enough seats remaining for this event"
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "Delivered orders cannot be cancelled"
	case errors.Is(err, services.ErrAlreadyPaid):
		return http.StatusConflict, "This order has already been paid"
	case errors.Is(err, services.ErrPaymentMismatch):
		return http.StatusConflict, "Payment does not match this order"
	case errors.Is(err, services.ErrPaymentsDisabled):
		return http.StatusServiceUnavailable, "Online payments are not available"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, &requestError{message: fmt.Sprintf("Invalid %s", name)}
	}
	return id, nil
}

// callerFromRequest describes the authenticated principal, if any.
func callerFromRequest(r *http.Request) services.Caller {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		return services.Caller{}
	}
	userID := principal.UserID
	return services.Caller{UserID: &userID, IsAdmin: principal.IsAdmin}
}
