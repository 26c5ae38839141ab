package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// Service runs the order placement and completion workflow.
type Service struct {
	store   Store
	payment PaymentPolicy

	tracer    trace.Tracer
	created   metric.Int64Counter
	completed metric.Int64Counter
	rejected  metric.Int64Counter
}

// NewService creates an order Service. Tracing and metrics are taken from the
// given providers.
func NewService(
	store Store,
	payment PaymentPolicy,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)
	s := &Service{
		store:   store,
		payment: payment,
		tracer:  tp.Tracer(instrumentationName),
	}

	var err error
	if s.created, err = meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders placed, by payment outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	if s.completed, err = meter.Int64Counter("storefront.orders.completed",
		metric.WithDescription("Orders moved to the processed state"),
	); err != nil {
		return nil, errors.Wrap(err, "orders completed counter")
	}
	if s.rejected, err = meter.Int64Counter("storefront.orders.rejected",
		metric.WithDescription("Order operations rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders rejected counter")
	}
	return s, nil
}

// Create places an order. The user is upserted by login, a new shipping
// address is stored, payment is simulated once, and every item is checked
// against and subtracted from stock. Everything happens in one transaction:
// on any error nothing is persisted.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() { s.finish(ctx, span, rerr) }()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Total.Round(MoneyPlaces).GreaterThanOrEqual(MaxAmount) {
		return nil, ErrAmountOutOfRange
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if item.PricePerItem.Round(MoneyPlaces).GreaterThanOrEqual(MaxAmount) {
			return nil, ErrAmountOutOfRange
		}
	}

	var o *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		user, err := s.resolveUser(ctx, tx, req.User)
		if err != nil {
			return err
		}

		addr := req.ShippingAddress
		if err := tx.CreateShippingAddress(ctx, &addr); err != nil {
			return fmt.Errorf("create shipping address: %w", err)
		}

		total := req.Total.Round(MoneyPlaces)
		o = &Order{
			Total:           total,
			IsPaid:          s.payment.Charge(ctx, total),
			User:            *user,
			ShippingAddress: addr,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		o.Items = make([]Item, 0, len(req.Items))
		for _, item := range req.Items {
			available, err := tx.LockStock(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("lock stock: %w", err)
			}
			if available < item.Quantity {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: available,
				}
			}
			if err := tx.DecreaseStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("decrease stock: %w", err)
			}
			item.PricePerItem = item.PricePerItem.Round(MoneyPlaces)
			if err := tx.AddItem(ctx, o.ID, &item); err != nil {
				return fmt.Errorf("add item: %w", err)
			}
			o.Items = append(o.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("paid", o.IsPaid)))
	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.User.ID),
		zap.Bool("paid", o.IsPaid),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

// resolveUser returns the stored user for in.Login, inserting it when new and
// overwriting the contact fields when they differ.
func (s *Service) resolveUser(ctx context.Context, tx Tx, in User) (*User, error) {
	existing, err := tx.UserByLogin(ctx, in.Login)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u := in
		if err := tx.CreateUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &u, nil
	case err != nil:
		return nil, fmt.Errorf("get user by login: %w", err)
	}

	if existing.SameContact(in) {
		return existing, nil
	}
	u := in
	u.ID = existing.ID
	if err := tx.UpdateUser(ctx, &u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

// Complete marks a paid order as processed. The order row stays locked for the
// duration of the check, so concurrent completions cannot both succeed.
func (s *Service) Complete(ctx context.Context, id int64) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Complete",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { s.finish(ctx, span, rerr) }()

	var o *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, id); err != nil {
			return err
		}
		if err := o.Complete(); err != nil {
			return err
		}
		if err := tx.MarkProcessed(ctx, id); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.completed.Add(ctx, 1)
	zctx.From(ctx).Info("Order completed", zap.Int64("order_id", id))
	return o, nil
}

// Get returns an order with its user, shipping address and items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// finish ends span and records a rejection for err, if any.
func (s *Service) finish(ctx context.Context, span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}

	reason := RejectReason(err)
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	if reason == "internal" {
		zctx.From(ctx).Error("Order operation failed", zap.Error(err))
	}
}

// RejectReason classifies a workflow error into a short machine-readable code.
func RejectReason(err error) string {
	var (
		notFound *ProductNotFoundError
		short    *InsufficientStockError
		badQty   *InvalidQuantityError
	)
	switch {
	case errors.Is(err, ErrEmptyItems):
		return "empty_items"
	case errors.Is(err, ErrAmountOutOfRange):
		return "amount_out_of_range"
	case errors.As(err, &badQty):
		return "invalid_quantity"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &short):
		return "insufficient_stock"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrOrderAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrOrderNotPaid):
		return "not_paid"
	default:
		return "internal"
	}
}
