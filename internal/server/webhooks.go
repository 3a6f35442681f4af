package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/webhook"
)

const (
	printSignatureHeader = "Lulu-HMAC-SHA256"
	printTopicStatus     = "PRINT_JOB_STATUS_CHANGED"

	maxWebhookBody = 1 << 20
)

// PaymentWebhook ingests payment-gateway deliveries. The raw body is
// passed through untouched; signature verification happens against those
// exact bytes.
func (s *Server) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.pipeline.WebhookProcessed("payment", "error")
		AbortWithError(c, invalidRequestError())
		return
	}

	provider := c.Param("provider")
	err = s.paymentSvc.IngestWebhook(c.Request.Context(), provider, body, c.Request.Header)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			s.pipeline.WebhookProcessed("payment", "replay")
			c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
			return
		}
		s.pipeline.WebhookProcessed("payment", "error")
		AbortWithError(c, err)
		return
	}

	s.pipeline.WebhookProcessed("payment", "ok")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type printWebhookPayload struct {
	Topic string `json:"topic"`
	Data  struct {
		ID     int64 `json:"id"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		LineItems []struct {
			TrackingID   string   `json:"tracking_id"`
			TrackingURLs []string `json:"tracking_urls"`
		} `json:"line_items"`
	} `json:"data"`
}

// tracking returns the first line item's tracking data, if any.
func (p printWebhookPayload) tracking() fulfillmentdomain.Tracking {
	for _, item := range p.Data.LineItems {
		if item.TrackingID == "" {
			continue
		}
		url := ""
		if len(item.TrackingURLs) > 0 {
			url = item.TrackingURLs[0]
		}
		return fulfillmentdomain.Tracking{Number: item.TrackingID, URL: url}
	}
	return fulfillmentdomain.Tracking{}
}

// PrintWebhook ingests print-partner status notifications. The signature
// covers the body alone, unlike the timestamped payment scheme.
func (s *Server) PrintWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.pipeline.WebhookProcessed("print", "error")
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := webhook.Verify(body, c.GetHeader(printSignatureHeader), s.cfg.Fulfillment.WebhookSecret); err != nil {
		s.pipeline.WebhookProcessed("print", "rejected")
		AbortWithError(c, err)
		return
	}

	var payload printWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.pipeline.WebhookProcessed("print", "error")
		AbortWithError(c, invalidRequestError())
		return
	}

	if payload.Topic != printTopicStatus {
		// Unknown topics are acknowledged so the partner does not retry
		// deliveries we will never handle.
		s.log.Info("ignoring print webhook topic", zap.String("topic", payload.Topic))
		s.pipeline.WebhookProcessed("print", "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if payload.Data.ID == 0 || payload.Data.Status.Name == "" {
		s.pipeline.WebhookProcessed("print", "error")
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.orderSvc.ApplyPrintStatus(c.Request.Context(), payload.Data.ID, fulfillmentdomain.JobStatus(payload.Data.Status.Name), payload.tracking())
	if err != nil {
		s.pipeline.WebhookProcessed("print", "error")
		AbortWithError(c, err)
		return
	}

	s.pipeline.WebhookProcessed("print", "ok")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
