// Package midtrans isolates all knowledge of the payment provider's request
// and response shapes. Base URLs are configurable so tests can point the
// client at local servers.
package midtrans

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pandutama/tripbooking/config"
	"github.com/pandutama/tripbooking/internal/domain"
)

type Client struct {
	httpClient *http.Client
	apiBase    string
	snapBase   string
	serverKey  string
}

func NewClient(cfg config.MidtransConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    cfg.APIBase,
		snapBase:   cfg.SnapBase,
		serverKey:  cfg.ServerKey,
	}
}

type SessionRequest struct {
	OrderID      string
	GrossAmount  int64
	Customer     domain.Customer
	PackageName  string
	UnitPrice    int64
	Participants int
}

// Session is the ephemeral checkout reference. Only the order id survives on
// the booking; token and redirect URL go straight back to the client.
type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"order_id"`
}

type snapTransactionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"customer_details"`
	ItemDetails []snapItem `json:"item_details"`
}

type snapItem struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var body snapTransactionRequest
	body.TransactionDetails.OrderID = req.OrderID
	body.TransactionDetails.GrossAmount = req.GrossAmount
	body.CustomerDetails.FirstName = req.Customer.Name
	body.CustomerDetails.Email = req.Customer.Email
	body.CustomerDetails.Phone = req.Customer.Phone
	body.ItemDetails = []snapItem{{
		ID:       req.OrderID,
		Price:    req.UnitPrice,
		Quantity: req.Participants,
		Name:     req.PackageName,
	}}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal session request: %v", domain.ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.snapBase+"/snap/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build session request: %v", domain.ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: create session: status %d: %s", domain.ErrGateway, resp.StatusCode, readSnippet(resp.Body))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: decode session response: %v", domain.ErrGateway, err)
	}
	if session.Token == "" || session.RedirectURL == "" {
		return nil, fmt.Errorf("%w: session response missing token or redirect url", domain.ErrGateway)
	}
	session.OrderID = req.OrderID
	return &session, nil
}

// TransactionStatus is the provider's raw status view for one order.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	TransactionTime   string `json:"transaction_time"`
	SettlementTime    string `json:"settlement_time"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (*TransactionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v2/"+orderID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build status request: %v", domain.ErrGateway, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: query status: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: query status: status %d: %s", domain.ErrGateway, resp.StatusCode, readSnippet(resp.Body))
	}

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", domain.ErrGateway, err)
	}
	if status.TransactionStatus == "" {
		return nil, fmt.Errorf("%w: status response missing transaction_status", domain.ErrGateway)
	}
	return &status, nil
}

// PaymentTime parses the provider's settlement time, falling back to the
// transaction time. Returns nil when neither parses.
func (t *TransactionStatus) PaymentTime() *time.Time {
	for _, raw := range []string{t.SettlementTime, t.TransactionTime} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
			return &ts
		}
	}
	return nil
}

// MapStatus translates a raw provider status pair into the internal
// vocabulary. Anything outside the known enumeration lands in the distinct
// unknown bucket, never in pending or failure.
func MapStatus(transactionStatus, fraudStatus string) domain.PaymentStatus {
	switch transactionStatus {
	case "settlement":
		return domain.PaymentStatusSettlement
	case "capture":
		switch fraudStatus {
		case "accept", "":
			return domain.PaymentStatusCapture
		case "challenge":
			return domain.PaymentStatusPending
		default:
			return domain.PaymentStatusDeny
		}
	case "pending":
		return domain.PaymentStatusPending
	case "deny":
		return domain.PaymentStatusDeny
	case "cancel":
		return domain.PaymentStatusCancel
	case "expire":
		return domain.PaymentStatusExpire
	case "failure":
		return domain.PaymentStatusFailure
	default:
		return domain.PaymentStatusUnknown
	}
}

// Notification is the asynchronous webhook body posted by the provider.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	SettlementTime    string `json:"settlement_time"`
}

// VerifySignature checks the provider's SHA-512 signature over
// order_id + status_code + gross_amount + server key.
func (c *Client) VerifySignature(n Notification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + c.serverKey))
	return hex.EncodeToString(sum[:]) == n.SignatureKey
}

func (n Notification) PaymentTime() *time.Time {
	t := TransactionStatus{SettlementTime: n.SettlementTime, TransactionTime: n.TransactionTime}
	return t.PaymentTime()
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
