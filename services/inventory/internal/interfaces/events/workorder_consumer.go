package events

import (
	"context"
	"fmt"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/idempotency"
	"github.com/autofix-platform/autofix/pkg/kafka"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/inventory/internal/application"
)

// WorkOrderEventHandler reacts to work-order lifecycle events. An approval
// reserves stock for every PART line; a completion confirms consumption of
// those reservations and writes the outbound ledger entries.
type WorkOrderEventHandler struct {
	service *application.InventoryApplicationService
	logger  *logging.Logger
}

// NewWorkOrderEventHandler creates a new WorkOrderEventHandler
func NewWorkOrderEventHandler(service *application.InventoryApplicationService, logger *logging.Logger) *WorkOrderEventHandler {
	return &WorkOrderEventHandler{
		service: service,
		logger:  logger,
	}
}

// Register subscribes the handlers on the work-order topic, each wrapped in
// durable event-id deduplication
func (h *WorkOrderEventHandler) Register(consumer *kafka.Consumer, dedupRepo idempotency.Repository, m *metrics.Metrics, serviceName, consumerGroup string) {
	dedupConfig := idempotency.DefaultConsumerConfig(serviceName, events.TopicWorkOrderEvents, consumerGroup, dedupRepo)

	consumer.Subscribe(events.TopicWorkOrderEvents, events.WorkOrderApproved,
		idempotency.DeduplicatingHandler(dedupConfig, m, h.HandleWorkOrderApproved))
	consumer.Subscribe(events.TopicWorkOrderEvents, events.WorkOrderCompleted,
		idempotency.DeduplicatingHandler(dedupConfig, m, h.HandleWorkOrderCompleted))
}

// HandleWorkOrderApproved reserves stock for the PART lines of an approved
// work order
func (h *WorkOrderEventHandler) HandleWorkOrderApproved(ctx context.Context, envelope *events.Envelope) error {
	var data events.WorkOrderApprovedData
	if err := envelope.Decode(&data); err != nil {
		return kafka.Permanent(fmt.Errorf("failed to decode approval payload: %w", err))
	}

	ctx = tenant.ToContext(ctx, data.TenantID)
	logger := h.logger.WithContext(ctx)

	for _, item := range data.Items {
		if item.Type != events.ItemTypePart || item.SKU == "" {
			continue
		}

		// The item id keys the reservation hold, so a redelivered approval
		// skips lines that already committed on an earlier attempt.
		_, err := h.service.ReserveStock(ctx, application.ReserveStockCommand{
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			Reference:     data.OrderNumber,
			ReservationID: item.ItemID,
		})
		if err != nil {
			if isPermanent(err) {
				logger.Error("Skipping unreservable work order line",
					"workOrderId", data.WorkOrderID,
					"sku", item.SKU,
					"quantity", item.Quantity,
					"error", err)
				continue
			}
			return fmt.Errorf("failed to reserve %s for %s: %w", item.SKU, data.OrderNumber, err)
		}

		logger.Info("Reserved stock for work order",
			"workOrderId", data.WorkOrderID, "sku", item.SKU, "quantity", item.Quantity)
	}

	return nil
}

// HandleWorkOrderCompleted confirms consumption of reserved stock for the
// PART lines of a completed work order
func (h *WorkOrderEventHandler) HandleWorkOrderCompleted(ctx context.Context, envelope *events.Envelope) error {
	var data events.WorkOrderCompletedData
	if err := envelope.Decode(&data); err != nil {
		return kafka.Permanent(fmt.Errorf("failed to decode completion payload: %w", err))
	}

	ctx = tenant.ToContext(ctx, data.TenantID)
	logger := h.logger.WithContext(ctx)

	for _, item := range data.Items {
		if item.Type != events.ItemTypePart || item.SKU == "" {
			continue
		}

		_, err := h.service.ConfirmConsumption(ctx, application.ConfirmConsumptionCommand{
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			Reference:     data.OrderNumber,
			ReservationID: item.ItemID,
		})
		if err != nil {
			if isPermanent(err) {
				logger.Error("Skipping unconsumable work order line",
					"workOrderId", data.WorkOrderID,
					"sku", item.SKU,
					"quantity", item.Quantity,
					"error", err)
				continue
			}
			return fmt.Errorf("failed to consume %s for %s: %w", item.SKU, data.OrderNumber, err)
		}

		logger.Info("Confirmed consumption for work order",
			"workOrderId", data.WorkOrderID, "sku", item.SKU, "quantity", item.Quantity)
	}

	return nil
}

// isPermanent reports whether redelivering the line could not possibly
// succeed. Business-rule rejections are logged and skipped; transient
// failures propagate so the message is redelivered.
func isPermanent(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return false
	}

	switch appErr.Code {
	case apperrors.CodeNotFound, apperrors.CodeUnprocessable, apperrors.CodeValidationError:
		return true
	default:
		return false
	}
}
