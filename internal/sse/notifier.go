package sse

import (
	"time"

	"github.com/GTDGit/gtd_esewa/internal/models"
	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

// PaymentNotifier is the interface services use to emit payment events.
type PaymentNotifier interface {
	NotifyPaymentCreated(p *models.Payment)
	NotifyPaymentStatusChanged(p *models.Payment)
}

// HubNotifier implements PaymentNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyPaymentCreated(p *models.Payment) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Publish(p.CustomerID, paymentToEvent(EventPaymentCreated, p))
}

func (n *HubNotifier) NotifyPaymentStatusChanged(p *models.Payment) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Publish(p.CustomerID, paymentToEvent(EventPaymentStatusChanged, p))
}

func paymentToEvent(eventType EventType, p *models.Payment) *PaymentEvent {
	return &PaymentEvent{
		Event:           eventType,
		TransactionUUID: p.TransactionUUID,
		OrderRef:        p.OrderRef,
		Status:          string(p.Status),
		TotalAmount:     esewa.FormatAmount(p.TotalAmount),
		FailedReason:    p.FailedReason,
		Timestamp:       time.Now(),
	}
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifyPaymentCreated(*models.Payment)       {}
func (NopNotifier) NotifyPaymentStatusChanged(*models.Payment) {}
