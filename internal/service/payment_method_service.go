package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// PaymentMethodService manages the user's payment methods through the
// exchange. Only custom methods may be changed or deleted.
type PaymentMethodService struct {
	gateway domain.PaymentMethodGateway
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewPaymentMethodService creates a PaymentMethodService. audit may be nil.
func NewPaymentMethodService(gateway domain.PaymentMethodGateway, audit domain.AuditStore, logger *slog.Logger) *PaymentMethodService {
	return &PaymentMethodService{
		gateway: gateway,
		audit:   audit,
		logger:  logger.With(slog.String("component", "payment_method_service")),
	}
}

// List returns every payment method available to the user.
func (s *PaymentMethodService) List(ctx context.Context) ([]domain.PaymentMethod, error) {
	methods, err := s.gateway.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("payment_method_service: list: %w", err)
	}
	return methods, nil
}

// Create adds a custom payment method.
func (s *PaymentMethodService) Create(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	pm.Name = strings.TrimSpace(pm.Name)
	if pm.Name == "" {
		return domain.PaymentMethod{}, fmt.Errorf("payment_method_service: create: %w: name is required", domain.ErrInvalidInput)
	}
	pm.ID = ""
	pm.Custom = true

	created, err := s.gateway.CreatePaymentMethod(ctx, pm)
	if err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("payment_method_service: create: %w", err)
	}
	s.log(ctx, "payment_method.created", created.ID)
	return created, nil
}

// Update changes a custom payment method.
func (s *PaymentMethodService) Update(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	if _, err := s.customMethod(ctx, pm.ID); err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("payment_method_service: update %s: %w", pm.ID, err)
	}
	pm.Custom = true

	updated, err := s.gateway.UpdatePaymentMethod(ctx, pm)
	if err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("payment_method_service: update %s: %w", pm.ID, err)
	}
	s.log(ctx, "payment_method.updated", pm.ID)
	return updated, nil
}

// Delete removes a custom payment method.
func (s *PaymentMethodService) Delete(ctx context.Context, id string) error {
	if _, err := s.customMethod(ctx, id); err != nil {
		return fmt.Errorf("payment_method_service: delete %s: %w", id, err)
	}
	if err := s.gateway.DeletePaymentMethod(ctx, id); err != nil {
		return fmt.Errorf("payment_method_service: delete %s: %w", id, err)
	}
	s.log(ctx, "payment_method.deleted", id)
	return nil
}

func (s *PaymentMethodService) customMethod(ctx context.Context, id string) (domain.PaymentMethod, error) {
	methods, err := s.gateway.ListPaymentMethods(ctx)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	for _, m := range methods {
		if m.ID != id {
			continue
		}
		if !m.Custom {
			return domain.PaymentMethod{}, domain.ErrNotCustom
		}
		return m, nil
	}
	return domain.PaymentMethod{}, domain.ErrNotFound
}

func (s *PaymentMethodService) log(ctx context.Context, event, id string) {
	s.logger.InfoContext(ctx, event, slog.String("payment_method_id", id))
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, map[string]any{"payment_method_id": id}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
