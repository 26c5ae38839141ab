package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

// paramError reports an unparsable path or query parameter.
type paramError struct {
	Name  string
	Value string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid value %q for parameter %s", e.Value, e.Name)
}

// fieldError describes one body field that failed validation.
type fieldError struct {
	Field string
	Rule  string
	Param string
}

// apiError is the error body returned by every endpoint.
type apiError struct {
	Status  int
	Reason  string
	Message string
	Fields  []fieldError
}

func (e *apiError) Error() string { return e.Message }

func (e *apiError) encode(enc *jx.Encoder) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.Status) })
		enc.Field("reason", func(enc *jx.Encoder) { enc.Str(e.Reason) })
		enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.Message) })
		if len(e.Fields) == 0 {
			return
		}
		enc.Field("fields", func(enc *jx.Encoder) {
			enc.Arr(func(enc *jx.Encoder) {
				for _, f := range e.Fields {
					enc.Obj(func(enc *jx.Encoder) {
						enc.Field("field", func(enc *jx.Encoder) { enc.Str(f.Field) })
						enc.Field("rule", func(enc *jx.Encoder) { enc.Str(f.Rule) })
						if f.Param != "" {
							enc.Field("param", func(enc *jx.Encoder) { enc.Str(f.Param) })
						}
					})
				}
			})
		})
	})
}

// sentinelErrors maps sentinel domain errors to their responses. The message
// is taken from the sentinel so wrapping context never leaks to clients.
var sentinelErrors = []struct {
	err    error
	status int
	reason string
}{
	{catalog.ErrCategoryNotFound, http.StatusNotFound, "category_not_found"},
	{catalog.ErrCategoryExists, http.StatusConflict, "category_exists"},
	{catalog.ErrCharacteristicNotFound, http.StatusNotFound, "characteristic_not_found"},
	{catalog.ErrCharacteristicExists, http.StatusConflict, "characteristic_exists"},
	{catalog.ErrDuplicateCharacteristic, http.StatusConflict, "duplicate_characteristic"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{catalog.ErrSKUExists, http.StatusConflict, "sku_exists"},
	{catalog.ErrInvalidPrice, http.StatusConflict, "invalid_price"},
	{catalog.ErrInvalidQuantity, http.StatusConflict, "invalid_quantity"},

	{order.ErrEmptyItems, http.StatusUnprocessableEntity, "empty_items"},
	{order.ErrAmountOutOfRange, http.StatusUnprocessableEntity, "amount_out_of_range"},
	{order.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{order.ErrOrderAlreadyCompleted, http.StatusConflict, "already_completed"},
	{order.ErrOrderNotPaid, http.StatusConflict, "not_paid"},
	{order.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
}

// mapError converts err to the response sent to the client. Unknown errors
// become a 500 without exposing their text.
func mapError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, errMalformedBody) {
		return &apiError{Status: http.StatusBadRequest, Reason: "malformed_body", Message: err.Error()}
	}

	var paramErr *paramError
	if errors.As(err, &paramErr) {
		return &apiError{Status: http.StatusBadRequest, Reason: "invalid_parameter", Message: paramErr.Error()}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return validationError(validationErrs)
	}

	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		return &apiError{Status: http.StatusNotFound, Reason: "product_not_found", Message: pnfErr.Error()}
	}

	var isErr *order.InsufficientStockError
	if errors.As(err, &isErr) {
		return &apiError{Status: http.StatusConflict, Reason: "insufficient_stock", Message: isErr.Error()}
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		return &apiError{Status: http.StatusUnprocessableEntity, Reason: "invalid_quantity", Message: iqErr.Error()}
	}

	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return &apiError{Status: s.status, Reason: s.reason, Message: s.err.Error()}
		}
	}

	return &apiError{
		Status:  http.StatusInternalServerError,
		Reason:  "internal",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

func validationError(errs validator.ValidationErrors) *apiError {
	fields := make([]fieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return &apiError{
		Status:  http.StatusUnprocessableEntity,
		Reason:  "validation_failed",
		Message: "request validation failed",
		Fields:  fields,
	}
}

// writeError maps err and writes the error body. Internal errors are logged
// with the request logger.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ae := mapError(err)
	if ae.Status >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, ae.Status, ae.encode)
}
