package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
)

// Status is the internal order lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPaymentReceived Status = "payment_received"
	StatusProcessing      Status = "processing"
	StatusSubmitted       Status = "submitted"
	StatusInProduction    Status = "in_production"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusFailed          Status = "failed"
)

// rank orders statuses along the happy path so idempotent replays of
// earlier transitions can be recognized as no-ops.
var rank = map[Status]int{
	StatusPending:         0,
	StatusPaymentReceived: 1,
	StatusProcessing:      2,
	StatusSubmitted:       3,
	StatusInProduction:    4,
	StatusShipped:         5,
	StatusDelivered:       6,
}

// AtOrPast reports whether s has already reached target on the happy path.
// Terminal failure states never count as past anything.
func (s Status) AtOrPast(target Status) bool {
	current, ok := rank[s]
	if !ok {
		return false
	}
	want, ok := rank[target]
	if !ok {
		return false
	}
	return current >= want
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// MapPartnerStatus translates the print partner's status vocabulary into
// the internal lifecycle. Unrecognized values fall back to processing so an
// expanded partner vocabulary degrades instead of erroring.
func MapPartnerStatus(status fulfillmentdomain.JobStatus) Status {
	switch status {
	case fulfillmentdomain.JobStatusCreated,
		fulfillmentdomain.JobStatusUnpaid,
		fulfillmentdomain.JobStatusPaymentInProgress:
		return StatusSubmitted
	case fulfillmentdomain.JobStatusProductionDelayed,
		fulfillmentdomain.JobStatusProductionReady,
		fulfillmentdomain.JobStatusInProduction:
		return StatusInProduction
	case fulfillmentdomain.JobStatusShipped:
		return StatusShipped
	case fulfillmentdomain.JobStatusRejected,
		fulfillmentdomain.JobStatusCanceled,
		fulfillmentdomain.JobStatusError:
		return StatusCancelled
	default:
		return StatusProcessing
	}
}

// Order is one book order moving through the fulfillment pipeline.
type Order struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	CreationID snowflake.ID `gorm:"not null;index"`
	Status     Status       `gorm:"type:text;not null;index"`

	CustomerEmail string `gorm:"type:text;not null"`
	CustomerName  string `gorm:"type:text"`

	Binding       string `gorm:"type:text;not null"`
	ProductCode   string `gorm:"type:text;not null"`
	Quantity      int    `gorm:"not null"`
	ShippingLevel string `gorm:"type:text;not null"`

	ShippingName    string `gorm:"type:text"`
	ShippingStreet1 string `gorm:"type:text"`
	ShippingStreet2 string `gorm:"type:text"`
	ShippingCity    string `gorm:"type:text"`
	ShippingState   string `gorm:"type:text"`
	ShippingPostal  string `gorm:"type:text"`
	ShippingCountry string `gorm:"type:text"`
	ShippingPhone   string `gorm:"type:text"`

	PaymentRef  string `gorm:"type:text"`
	AmountCents int64  `gorm:"not null;default:0"`
	Currency    string `gorm:"type:text"`

	PageCount   int    `gorm:"not null;default:0"`
	InteriorURL string `gorm:"type:text"`
	CoverURL    string `gorm:"type:text"`
	PrintJobID  *int64 `gorm:"index"`

	TrackingNumber string `gorm:"type:text"`
	TrackingURL    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// ShippingAddress assembles the partner-facing address from the stored
// columns.
func (o *Order) ShippingAddress() fulfillmentdomain.Address {
	return fulfillmentdomain.Address{
		Name:        o.ShippingName,
		Street1:     o.ShippingStreet1,
		Street2:     o.ShippingStreet2,
		City:        o.ShippingCity,
		StateCode:   o.ShippingState,
		PostalCode:  o.ShippingPostal,
		CountryCode: o.ShippingCountry,
		PhoneNumber: o.ShippingPhone,
	}
}

// Creation is a customer's uploaded story, the content source for orders.
type Creation struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	Title         string         `gorm:"type:text;not null"`
	Author        string         `gorm:"type:text"`
	Dedication    string         `gorm:"type:text"`
	CoverImageURL string         `gorm:"type:text"`
	Pages         datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (Creation) TableName() string { return "creations" }

// CreationPage is one story page as stored in the creation's pages JSON.
type CreationPage struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// StoryPages decodes the stored pages JSON.
func (c *Creation) StoryPages() ([]CreationPage, error) {
	if len(c.Pages) == 0 {
		return nil, nil
	}
	var pages []CreationPage
	if err := json.Unmarshal(c.Pages, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}
