package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
)

type createOrderRequest struct {
	CreationID    string `json:"creation_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	BookType      string `json:"book_type"`
	Quantity      int    `json:"quantity"`
	ShippingLevel string `json:"shipping_level"`
	Shipping      struct {
		Name        string `json:"name"`
		Street1     string `json:"street1"`
		Street2     string `json:"street2"`
		City        string `json:"city"`
		StateCode   string `json:"state_code"`
		PostalCode  string `json:"postcode"`
		CountryCode string `json:"country_code"`
		PhoneNumber string `json:"phone_number"`
	} `json:"shipping_address"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creationID, err := parseID(req.CreationID)
	if err != nil {
		AbortWithError(c, newValidationError("creation_id", "invalid_creation_id", "creation_id must be a numeric id"))
		return
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		AbortWithError(c, newValidationError("customer_email", "required", "customer_email is required"))
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		CreationID:    creationID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		BookType:      req.BookType,
		Quantity:      req.Quantity,
		ShippingLevel: req.ShippingLevel,
		Shipping: fulfillmentdomain.Address{
			Name:        req.Shipping.Name,
			Street1:     req.Shipping.Street1,
			Street2:     req.Shipping.Street2,
			City:        req.Shipping.City,
			StateCode:   req.Shipping.StateCode,
			PostalCode:  req.Shipping.PostalCode,
			CountryCode: req.Shipping.CountryCode,
			PhoneNumber: req.Shipping.PhoneNumber,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": orderView(order)})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orderView(order)})
}

func (s *Server) ProcessOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.orderSvc.Process(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orderView(order)})
}

func (s *Server) DeliverOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.orderSvc.MarkDelivered(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) CancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.orderSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type orderResponse struct {
	ID             string `json:"id"`
	CreationID     string `json:"creation_id"`
	Status         string `json:"status"`
	Binding        string `json:"binding"`
	Quantity       int    `json:"quantity"`
	ShippingLevel  string `json:"shipping_level"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	Currency       string `json:"currency,omitempty"`
	PageCount      int    `json:"page_count,omitempty"`
	PrintJobID     *int64 `json:"print_job_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func orderView(order *orderdomain.Order) orderResponse {
	return orderResponse{
		ID:             order.ID.String(),
		CreationID:     order.CreationID.String(),
		Status:         string(order.Status),
		Binding:        order.Binding,
		Quantity:       order.Quantity,
		ShippingLevel:  order.ShippingLevel,
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		PageCount:      order.PageCount,
		PrintJobID:     order.PrintJobID,
		TrackingNumber: order.TrackingNumber,
		TrackingURL:    order.TrackingURL,
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || parsed == 0 {
		return 0, orderdomain.ErrInvalidOrder
	}
	return snowflake.ID(parsed), nil
}
