package events

// Order event types written to the outbox.
const (
	EventPaymentReceived    = "payment_received"
	EventProcessingStarted  = "processing_started"
	EventDocumentsRendered  = "documents_rendered"
	EventPrintJobSubmitted  = "print_job_submitted"
	EventPrintStatusApplied = "print_status_applied"
	EventOrderShipped       = "order_shipped"
	EventOrderDelivered     = "order_delivered"
	EventOrderCancelled     = "order_cancelled"
)

// StatusChangePayload captures a single order status transition.
type StatusChangePayload struct {
	From           string `json:"from"`
	To             string `json:"to"`
	PartnerStatus  string `json:"partner_status,omitempty"`
	PrintJobID     int64  `json:"print_job_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p StatusChangePayload) ToMap() map[string]any {
	payload := map[string]any{
		"from": p.From,
		"to":   p.To,
	}
	if p.PartnerStatus != "" {
		payload["partner_status"] = p.PartnerStatus
	}
	if p.PrintJobID != 0 {
		payload["print_job_id"] = p.PrintJobID
	}
	if p.TrackingNumber != "" {
		payload["tracking_number"] = p.TrackingNumber
	}
	return payload
}
