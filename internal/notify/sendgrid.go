package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/observability/tracing"
)

const sendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridNotifier delivers emails through the SendGrid v3 mail API.
type SendGridNotifier struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
}

func NewSendGridNotifier(cfg config.NotifyConfig, log *zap.Logger) *SendGridNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendGridNotifier{
		apiKey:     cfg.SendGridAPIKey,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		endpoint:   sendGridEndpoint,
		httpClient: tracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		log:        log.Named("notify.sendgrid"),
	}
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (n *SendGridNotifier) OrderShipped(ctx context.Context, notice ShipmentNotice) error {
	if strings.TrimSpace(notice.ToEmail) == "" {
		return fmt.Errorf("missing recipient email")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Good news! Your printed book %q is on its way.\n\n", notice.BookTitle)
	if notice.TrackingNumber != "" {
		fmt.Fprintf(&body, "Tracking number: %s\n", notice.TrackingNumber)
	}
	if notice.TrackingURL != "" {
		fmt.Fprintf(&body, "Track your package: %s\n", notice.TrackingURL)
	}

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{
			To: []sendGridAddress{{Email: notice.ToEmail, Name: notice.ToName}},
		}},
		From:    sendGridAddress{Email: n.fromEmail, Name: n.fromName},
		Subject: "Your book has shipped!",
		Content: []sendGridContent{{Type: "text/plain", Value: body.String()}},
	}

	encoded, err := json.Marshal(mail)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.log.Warn("shipment notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("detail", string(detail)),
		)
		return fmt.Errorf("mail provider returned %d", resp.StatusCode)
	}
	return nil
}
