// Package lulu implements the print-partner client against the Lulu Print
// API. Every call authenticates with a fresh client-credentials token; the
// partner's responses and status names are passed through unmodified.
package lulu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/observability/tracing"
)

// rateCalcPageCount is the page count used for shipping-rate discovery.
// Rates are quoted before the interior is rendered, so a standard edition
// size stands in for the real count.
const rateCalcPageCount = 32

const defaultProductCode = "0850X0850FCSTDCW080CW444MXX"

// Client talks to the Lulu Print API for one configured environment.
type Client struct {
	cfg        config.FulfillmentConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.FulfillmentConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		log:        log.Named("lulu"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token exchanges the client credentials for a fresh bearer token. Tokens
// are short-lived and cheap to mint, so nothing is cached.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", fmt.Errorf("%w: missing client credentials", domain.ErrAuth)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %v", domain.ErrAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("token request rejected",
			zap.String("environment", c.cfg.Environment),
			zap.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("%w: token endpoint returned %d", domain.ErrAuth, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrAuth, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrAuth)
	}
	return token.AccessToken, nil
}

type costCalcRequest struct {
	LineItems       []costCalcLineItem `json:"line_items"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	ShippingLevel   string             `json:"shipping_level"`
}

type costCalcLineItem struct {
	PageCount    int    `json:"page_count"`
	PodPackageID string `json:"pod_package_id"`
	Quantity     int    `json:"quantity"`
}

type costCalcResponse struct {
	Currency     string `json:"currency"`
	ShippingCost struct {
		TotalCostInclTax string `json:"total_cost_incl_tax"`
	} `json:"shipping_cost"`
	TotalCostInclTax string `json:"total_cost_incl_tax"`
}

// ShippingOptions quotes every service level for the given destination.
// Levels the partner rejects for that address are skipped; the call fails
// only when no level at all is available.
func (c *Client) ShippingOptions(ctx context.Context, address domain.Address, productCode string, quantity int) ([]domain.ShippingOption, error) {
	if err := address.ValidateForPrint(); err != nil {
		return nil, err
	}
	if productCode == "" {
		productCode = defaultProductCode
	}
	if quantity < 1 {
		quantity = 1
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	levels := domain.ShippingLevels()
	results := make([]*domain.ShippingOption, len(levels))

	var wg sync.WaitGroup
	for i, level := range levels {
		wg.Add(1)
		go func(i int, level domain.ShippingLevel) {
			defer wg.Done()
			option, err := c.quoteLevel(ctx, token, address, productCode, quantity, level)
			if err != nil {
				c.log.Debug("shipping level unavailable",
					zap.String("environment", c.cfg.Environment),
					zap.String("level", string(level)),
					zap.Error(err),
				)
				return
			}
			results[i] = option
		}(i, level)
	}
	wg.Wait()

	options := make([]domain.ShippingOption, 0, len(levels))
	for _, option := range results {
		if option != nil {
			options = append(options, *option)
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: environment %s", domain.ErrNoShippingOptions, c.cfg.Environment)
	}
	return options, nil
}

func (c *Client) quoteLevel(ctx context.Context, token string, address domain.Address, productCode string, quantity int, level domain.ShippingLevel) (*domain.ShippingOption, error) {
	payload := costCalcRequest{
		LineItems: []costCalcLineItem{{
			PageCount:    rateCalcPageCount,
			PodPackageID: productCode,
			Quantity:     quantity,
		}},
		ShippingAddress: address,
		ShippingLevel:   string(level),
	}

	var decoded costCalcResponse
	if err := c.postJSON(ctx, token, "/print-job-cost-calculations/", payload, &decoded); err != nil {
		return nil, err
	}

	cents, err := parseMoney(decoded.ShippingCost.TotalCostInclTax)
	if err != nil {
		return nil, fmt.Errorf("parse shipping cost for %s: %w", level, err)
	}
	return &domain.ShippingOption{
		Level:       level,
		CostCents:   cents,
		Currency:    decoded.Currency,
		Environment: c.cfg.Environment,
	}, nil
}

type printJobRequest struct {
	ContactEmail    string             `json:"contact_email"`
	ExternalID      string             `json:"external_id,omitempty"`
	LineItems       []printJobLineItem `json:"line_items"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	ShippingLevel   string             `json:"shipping_level"`
}

type printJobLineItem struct {
	Title                  string                 `json:"title"`
	Quantity               int                    `json:"quantity"`
	PodPackageID           string                 `json:"pod_package_id"`
	PageCount              int                    `json:"page_count"`
	PrintableNormalization printableNormalization `json:"printable_normalization"`
}

type printableNormalization struct {
	Interior printableSource `json:"interior"`
	Cover    printableSource `json:"cover"`
}

type printableSource struct {
	SourceURL string `json:"source_url"`
}

type printJobResponse struct {
	ID     int64 `json:"id"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
	LineItems []struct {
		TrackingID   string   `json:"tracking_id"`
		TrackingURLs []string `json:"tracking_urls"`
		Status       struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"line_items"`
}

// SubmitJob creates a print job. Preconditions are checked locally before
// any partner traffic: every document URL must be externally resolvable
// over http(s) and the shipping address must be complete.
func (c *Client) SubmitJob(ctx context.Context, req domain.SubmitRequest) (*domain.Job, error) {
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("%w: no line items", domain.ErrSubmission)
	}
	for _, item := range req.LineItems {
		if !resolvableURL(item.InteriorURL) {
			return nil, fmt.Errorf("%w: interior url %q", domain.ErrMissingDocumentURL, item.InteriorURL)
		}
		if !resolvableURL(item.CoverURL) {
			return nil, fmt.Errorf("%w: cover url %q", domain.ErrMissingDocumentURL, item.CoverURL)
		}
	}
	if err := req.ShippingAddress.ValidateForPrint(); err != nil {
		return nil, err
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	contactEmail := req.ContactEmail
	if contactEmail == "" {
		contactEmail = c.cfg.ContactEmail
	}

	payload := printJobRequest{
		ContactEmail:    contactEmail,
		ShippingAddress: req.ShippingAddress,
		ShippingLevel:   string(req.ShippingLevel),
	}
	for _, item := range req.LineItems {
		payload.LineItems = append(payload.LineItems, printJobLineItem{
			Title:        item.Title,
			Quantity:     item.Quantity,
			PodPackageID: item.ProductCode,
			PageCount:    item.PageCount,
			PrintableNormalization: printableNormalization{
				Interior: printableSource{SourceURL: item.InteriorURL},
				Cover:    printableSource{SourceURL: item.CoverURL},
			},
		})
	}

	var decoded printJobResponse
	if err := c.postJSON(ctx, token, "/print-jobs/", payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSubmission, err)
	}

	job := jobFromResponse(decoded, c.cfg.Environment)
	c.log.Info("print job submitted",
		zap.String("environment", c.cfg.Environment),
		zap.Int64("job_id", job.ID),
		zap.String("status", string(job.Status)),
	)
	return job, nil
}

// JobStatus fetches the current state of a submitted print job.
func (c *Client) JobStatus(ctx context.Context, jobID int64) (*domain.Job, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/print-jobs/%d/", strings.TrimRight(c.cfg.BaseURL, "/"), jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.PartnerError{
			Environment: c.cfg.Environment,
			StatusCode:  resp.StatusCode,
			Message:     truncate(string(body), 200),
		}
	}

	var decoded printJobResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode print job response: %w", err)
	}
	return jobFromResponse(decoded, c.cfg.Environment), nil
}

func (c *Client) postJSON(ctx context.Context, token, path string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.PartnerError{
			Environment: c.cfg.Environment,
			StatusCode:  resp.StatusCode,
			Message:     truncate(string(body), 200),
		}
	}
	return json.Unmarshal(body, out)
}

func jobFromResponse(resp printJobResponse, environment string) *domain.Job {
	job := &domain.Job{
		ID:          resp.ID,
		Status:      domain.JobStatus(resp.Status.Name),
		Environment: environment,
	}
	for _, item := range resp.LineItems {
		job.LineItems = append(job.LineItems, domain.JobLineItem{
			TrackingID:   item.TrackingID,
			TrackingURLs: item.TrackingURLs,
			Status:       domain.JobStatus(item.Status.Name),
		})
	}
	return job
}

func resolvableURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func parseMoney(raw string) (int64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(amount * 100)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
