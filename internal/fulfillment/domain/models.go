package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// JobStatus is the print partner's status vocabulary, mirrored verbatim.
type JobStatus string

const (
	JobStatusCreated           JobStatus = "CREATED"
	JobStatusUnpaid            JobStatus = "UNPAID"
	JobStatusPaymentInProgress JobStatus = "PAYMENT_IN_PROGRESS"
	JobStatusProductionDelayed JobStatus = "PRODUCTION_DELAYED"
	JobStatusProductionReady   JobStatus = "PRODUCTION_READY"
	JobStatusInProduction      JobStatus = "IN_PRODUCTION"
	JobStatusShipped           JobStatus = "SHIPPED"
	JobStatusRejected          JobStatus = "REJECTED"
	JobStatusCanceled          JobStatus = "CANCELED"
	JobStatusError             JobStatus = "ERROR"
)

// ShippingLevel is a partner service level for shipping speed/cost.
type ShippingLevel string

const (
	ShippingLevelMail         ShippingLevel = "MAIL"
	ShippingLevelGround       ShippingLevel = "GROUND"
	ShippingLevelExpedited    ShippingLevel = "EXPEDITED"
	ShippingLevelPriorityMail ShippingLevel = "PRIORITY_MAIL"
)

// ShippingLevels lists every level queried during rate discovery.
func ShippingLevels() []ShippingLevel {
	return []ShippingLevel{
		ShippingLevelMail,
		ShippingLevelGround,
		ShippingLevelExpedited,
		ShippingLevelPriorityMail,
	}
}

// Address is a shipping destination. Physical orders require a complete
// address before any partner call is made.
type Address struct {
	Name        string `json:"name"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	PostalCode  string `json:"postcode"`
	CountryCode string `json:"country_code"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ValidateForPrint checks the fields the partner requires for submission.
func (a Address) ValidateForPrint() error {
	var missing []string
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(a.Street1) == "" {
		missing = append(missing, "street1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postcode")
	}
	if strings.TrimSpace(a.CountryCode) == "" {
		missing = append(missing, "country_code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteAddress, strings.Join(missing, ", "))
	}
	return nil
}

// ShippingOption is one viable service level for an address and product.
type ShippingOption struct {
	Level       ShippingLevel
	CostCents   int64
	Currency    string
	Environment string
}

// LineItem is one book instance in a print job submission.
type LineItem struct {
	Title       string
	Quantity    int
	PageCount   int
	ProductCode string
	InteriorURL string
	CoverURL    string
}

// SubmitRequest is a full print-job submission.
type SubmitRequest struct {
	LineItems       []LineItem
	ShippingAddress Address
	ShippingLevel   ShippingLevel
	ContactEmail    string
}

// Tracking is the shipment tracking data for a print job, taken from the
// first line item that carries any.
type Tracking struct {
	Number string
	URL    string
}

// Empty reports whether no tracking number is present.
func (t Tracking) Empty() bool {
	return strings.TrimSpace(t.Number) == ""
}

// JobLineItem mirrors per-line-item tracking fields from the partner.
type JobLineItem struct {
	TrackingID   string
	TrackingURLs []string
	Status       JobStatus
}

// Job is the partner's view of a submitted print job.
type Job struct {
	ID          int64
	Status      JobStatus
	Environment string
	LineItems   []JobLineItem
}

// FirstTracking returns the tracking data from the first line item that
// carries a tracking number.
func (j *Job) FirstTracking() Tracking {
	if j == nil {
		return Tracking{}
	}
	for _, item := range j.LineItems {
		if strings.TrimSpace(item.TrackingID) == "" {
			continue
		}
		url := ""
		if len(item.TrackingURLs) > 0 {
			url = item.TrackingURLs[0]
		}
		return Tracking{Number: item.TrackingID, URL: url}
	}
	return Tracking{}
}

// Client talks to the print partner.
type Client interface {
	Token(ctx context.Context) (string, error)
	ShippingOptions(ctx context.Context, address Address, productCode string, quantity int) ([]ShippingOption, error)
	SubmitJob(ctx context.Context, req SubmitRequest) (*Job, error)
	JobStatus(ctx context.Context, jobID int64) (*Job, error)
}

var (
	ErrAuth               = errors.New("fulfillment_auth_failed")
	ErrNoShippingOptions  = errors.New("no_shipping_options")
	ErrSubmission         = errors.New("submission_rejected")
	ErrMissingDocumentURL = errors.New("missing_document_url")
	ErrIncompleteAddress  = errors.New("incomplete_shipping_address")
	ErrJobNotFound        = errors.New("print_job_not_found")
)

// PartnerError is a partner API failure. The environment always travels
// with the error so operators can tell sandbox noise from production
// failures.
type PartnerError struct {
	Environment string
	StatusCode  int
	Message     string
}

func (e *PartnerError) Error() string {
	return fmt.Sprintf("print partner error (%s, status %d): %s", e.Environment, e.StatusCode, e.Message)
}
