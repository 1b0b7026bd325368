package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.mercadopago.com"
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

var (
	ErrMissingAccessToken = errors.New("gateway access token is not configured")
	ErrInvalidResponse    = errors.New("invalid gateway response")
)

// HTTPClient talks to a MercadoPago-style REST API.
type HTTPClient struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, accessToken string, timeout time.Duration) (*HTTPClient, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, ErrMissingAccessToken
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: token,
		HTTPClient:  &http.Client{Timeout: timeout},
	}, nil
}

// flexID accepts ids sent either as JSON strings or as JSON numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type payerIdentification struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

type payerBody struct {
	Email          string               `json:"email"`
	FirstName      string               `json:"first_name,omitempty"`
	LastName       string               `json:"last_name,omitempty"`
	Identification *payerIdentification `json:"identification,omitempty"`
}

type paymentBody struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id,omitempty"`
	Description       string      `json:"description,omitempty"`
	PaymentMethodID   string      `json:"payment_method_id"`
	PaymentTypeID     string      `json:"payment_type_id,omitempty"`
	Installments      int         `json:"installments,omitempty"`
	Token             string      `json:"token,omitempty"`
	ExternalReference string      `json:"external_reference,omitempty"`
	Payer             payerBody   `json:"payer"`
}

type paymentResponse struct {
	ID                flexID              `json:"id"`
	Status            string              `json:"status"`
	StatusDetail      string              `json:"status_detail"`
	TransactionAmount decimal.NullDecimal `json:"transaction_amount"`
	CurrencyID        string              `json:"currency_id"`
	PaymentMethodID   string              `json:"payment_method_id"`
	DateCreated       string              `json:"date_created"`
	DateApproved      string              `json:"date_approved"`
}

type refundBody struct {
	Amount json.Number `json:"amount,omitempty"`
}

type refundResponse struct {
	ID     flexID              `json:"id"`
	Amount decimal.NullDecimal `json:"amount"`
	Status string              `json:"status"`
}

type autoRecurring struct {
	Frequency         int                 `json:"frequency"`
	FrequencyType     string              `json:"frequency_type"`
	TransactionAmount decimal.NullDecimal `json:"transaction_amount"`
	CurrencyID        string              `json:"currency_id"`
	StartDate         string              `json:"start_date"`
	EndDate           string              `json:"end_date"`
}

type autoRecurringBody struct {
	Frequency         int         `json:"frequency"`
	FrequencyType     string      `json:"frequency_type"`
	TransactionAmount json.Number `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
}

type preapprovalBody struct {
	PlanID            string             `json:"preapproval_plan_id,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	PayerEmail        string             `json:"payer_email"`
	CardTokenID       string             `json:"card_token_id,omitempty"`
	PaymentMethodID   string             `json:"payment_method_id,omitempty"`
	ExternalReference string             `json:"external_reference,omitempty"`
	AutoRecurring     *autoRecurringBody `json:"auto_recurring,omitempty"`
	Status            string             `json:"status,omitempty"`
}

type preapprovalResponse struct {
	ID              flexID        `json:"id"`
	Status          string        `json:"status"`
	PlanID          string        `json:"preapproval_plan_id"`
	NextPaymentDate string        `json:"next_payment_date"`
	AutoRecurring   autoRecurring `json:"auto_recurring"`
}

type planResponse struct {
	ID            flexID        `json:"id"`
	Reason        string        `json:"reason"`
	Status        string        `json:"status"`
	AutoRecurring autoRecurring `json:"auto_recurring"`
}

func (c *HTTPClient) CreatePayment(ctx context.Context, in PaymentRequest) (*Payment, error) {
	body := paymentBody{
		TransactionAmount: amountNumber(in.Amount),
		CurrencyID:        in.Currency,
		Description:       in.Description,
		PaymentMethodID:   in.PaymentMethodID,
		PaymentTypeID:     in.PaymentType,
		Installments:      in.Installments,
		Token:             in.CardToken,
		ExternalReference: in.ExternalReference,
		Payer: payerBody{
			Email:     in.Payer.Email,
			FirstName: in.Payer.FirstName,
			LastName:  in.Payer.LastName,
		},
	}
	if in.Payer.IdentificationType != "" || in.Payer.IdentificationNumber != "" {
		body.Payer.Identification = &payerIdentification{
			Type:   in.Payer.IdentificationType,
			Number: in.Payer.IdentificationNumber,
		}
	}

	var out paymentResponse
	if err := c.do(ctx, "create_payment", "", http.MethodPost, "/v1/payments", body, idempotencyKey(in.IdempotencyKey), &out); err != nil {
		return nil, err
	}
	return out.toPayment("create_payment")
}

func (c *HTTPClient) GetPayment(ctx context.Context, externalID string) (*Payment, error) {
	var out paymentResponse
	if err := c.do(ctx, "get_payment", externalID, http.MethodGet, "/v1/payments/"+url.PathEscape(externalID), nil, "", &out); err != nil {
		return nil, err
	}
	return out.toPayment("get_payment")
}

func (c *HTTPClient) CancelPayment(ctx context.Context, externalID string) (*Payment, error) {
	var out paymentResponse
	body := map[string]string{"status": "cancelled"}
	if err := c.do(ctx, "cancel_payment", externalID, http.MethodPut, "/v1/payments/"+url.PathEscape(externalID), body, "", &out); err != nil {
		return nil, err
	}
	return out.toPayment("cancel_payment")
}

func (c *HTTPClient) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*Refund, error) {
	var out refundResponse
	path := "/v1/payments/" + url.PathEscape(externalID) + "/refunds"
	body := refundBody{}
	if amount != nil {
		body.Amount = amountNumber(*amount)
	}
	if err := c.do(ctx, "refund_payment", externalID, http.MethodPost, path, body, uuid.NewString(), &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Op: "refund_payment", ExternalID: externalID, Err: fmt.Errorf("%w: missing id", ErrInvalidResponse)}
	}
	refund := &Refund{ID: string(out.ID), Status: out.Status}
	if out.Amount.Valid {
		refund.Amount = out.Amount.Decimal
	} else if amount != nil {
		refund.Amount = *amount
	}
	return refund, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*Subscription, error) {
	body := preapprovalBody{
		PlanID:            in.PlanID,
		Reason:            in.Reason,
		PayerEmail:        in.PayerEmail,
		CardTokenID:       in.CardToken,
		PaymentMethodID:   in.PaymentMethodID,
		ExternalReference: in.ExternalReference,
		Status:            "authorized",
	}
	if in.Frequency > 0 {
		body.AutoRecurring = &autoRecurringBody{
			Frequency:         in.Frequency,
			FrequencyType:     in.FrequencyType,
			TransactionAmount: amountNumber(in.Amount),
			CurrencyID:        in.Currency,
		}
	}

	var out preapprovalResponse
	if err := c.do(ctx, "create_subscription", "", http.MethodPost, "/preapproval", body, idempotencyKey(in.IdempotencyKey), &out); err != nil {
		return nil, err
	}
	return out.toSubscription("create_subscription")
}

func (c *HTTPClient) GetSubscription(ctx context.Context, externalID string) (*Subscription, error) {
	var out preapprovalResponse
	if err := c.do(ctx, "get_subscription", externalID, http.MethodGet, "/preapproval/"+url.PathEscape(externalID), nil, "", &out); err != nil {
		return nil, err
	}
	return out.toSubscription("get_subscription")
}

func (c *HTTPClient) CancelSubscription(ctx context.Context, externalID string) (*Subscription, error) {
	return c.updateSubscriptionStatus(ctx, "cancel_subscription", externalID, "cancelled")
}

func (c *HTTPClient) PauseSubscription(ctx context.Context, externalID string) (*Subscription, error) {
	return c.updateSubscriptionStatus(ctx, "pause_subscription", externalID, "paused")
}

func (c *HTTPClient) ReactivateSubscription(ctx context.Context, externalID string) (*Subscription, error) {
	return c.updateSubscriptionStatus(ctx, "reactivate_subscription", externalID, "authorized")
}

func (c *HTTPClient) updateSubscriptionStatus(ctx context.Context, op, externalID, status string) (*Subscription, error) {
	var out preapprovalResponse
	body := map[string]string{"status": status}
	if err := c.do(ctx, op, externalID, http.MethodPut, "/preapproval/"+url.PathEscape(externalID), body, "", &out); err != nil {
		return nil, err
	}
	return out.toSubscription(op)
}

func (c *HTTPClient) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	var out planResponse
	if err := c.do(ctx, "get_plan", planID, http.MethodGet, "/preapproval_plan/"+url.PathEscape(planID), nil, "", &out); err != nil {
		return nil, err
	}
	if out.ID == "" || strings.TrimSpace(out.Status) == "" {
		return nil, &Error{Op: "get_plan", ExternalID: planID, Err: fmt.Errorf("%w: missing id or status", ErrInvalidResponse)}
	}
	plan := &Plan{
		ID:            string(out.ID),
		Name:          out.Reason,
		Status:        strings.ToLower(strings.TrimSpace(out.Status)),
		Currency:      out.AutoRecurring.CurrencyID,
		Frequency:     out.AutoRecurring.Frequency,
		FrequencyType: out.AutoRecurring.FrequencyType,
	}
	if out.AutoRecurring.TransactionAmount.Valid {
		plan.Amount = out.AutoRecurring.TransactionAmount.Decimal
	}
	return plan, nil
}

func (c *HTTPClient) do(ctx context.Context, op, externalID, method, path string, in any, idemKey string, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, ExternalID: externalID, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, ExternalID: externalID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &Error{Op: op, ExternalID: externalID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, ExternalID: externalID, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The body can echo payer data, so only a short prefix goes into the
		// error, which is logged but never sent to API clients.
		return &Error{Op: op, ExternalID: externalID, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", truncate(body, 256))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, ExternalID: externalID, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	return nil
}

func (r paymentResponse) toPayment(op string) (*Payment, error) {
	if r.ID == "" || strings.TrimSpace(r.Status) == "" {
		return nil, &Error{Op: op, ExternalID: string(r.ID), Err: fmt.Errorf("%w: missing id or status", ErrInvalidResponse)}
	}
	created, err := parseTime(r.DateCreated)
	if err != nil {
		return nil, &Error{Op: op, ExternalID: string(r.ID), Err: err}
	}
	approved, err := parseTime(r.DateApproved)
	if err != nil {
		return nil, &Error{Op: op, ExternalID: string(r.ID), Err: err}
	}
	p := &Payment{
		ID:              string(r.ID),
		Status:          r.Status,
		StatusDetail:    r.StatusDetail,
		Currency:        r.CurrencyID,
		PaymentMethodID: r.PaymentMethodID,
		CreatedAt:       created,
		ApprovedAt:      approved,
	}
	if r.TransactionAmount.Valid {
		if r.TransactionAmount.Decimal.IsNegative() {
			return nil, &Error{Op: op, ExternalID: p.ID, Err: fmt.Errorf("%w: negative amount", ErrInvalidResponse)}
		}
		p.Amount = r.TransactionAmount.Decimal
	}
	return p, nil
}

func (r preapprovalResponse) toSubscription(op string) (*Subscription, error) {
	if r.ID == "" || strings.TrimSpace(r.Status) == "" {
		return nil, &Error{Op: op, ExternalID: string(r.ID), Err: fmt.Errorf("%w: missing id or status", ErrInvalidResponse)}
	}
	s := &Subscription{ID: string(r.ID), Status: r.Status, PlanID: r.PlanID}
	var err error
	if s.NextPaymentDate, err = parseTime(r.NextPaymentDate); err != nil {
		return nil, &Error{Op: op, ExternalID: s.ID, Err: err}
	}
	if s.StartDate, err = parseTime(r.AutoRecurring.StartDate); err != nil {
		return nil, &Error{Op: op, ExternalID: s.ID, Err: err}
	}
	if s.EndDate, err = parseTime(r.AutoRecurring.EndDate); err != nil {
		return nil, &Error{Op: op, ExternalID: s.ID, Err: err}
	}
	return s, nil
}

func parseTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrInvalidResponse, v)
	}
	return &t, nil
}

// amountNumber renders a decimal as a bare JSON number with two places.
func amountNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func idempotencyKey(k string) string {
	if strings.TrimSpace(k) != "" {
		return k
	}
	return uuid.NewString()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
