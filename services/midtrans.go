package services

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/yeremiapane/bar-booking/models"
)

// MidtransConfig holds Midtrans configuration
type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	WebhookURL   string
	FinishURL    string
}

// Internal transaction statuses after mapping Midtrans' vocabulary.
const (
	TransactionSuccess = "success"
	TransactionPending = "pending"
	TransactionFailed  = "failed"
	TransactionUnknown = "unknown"
)

type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransGateway collects booking deposits through Midtrans Snap and checks
// webhook signatures.
type MidtransGateway struct {
	config     *MidtransConfig
	snap       snapCreator
	httpClient *http.Client
	baseURL    string
}

func NewMidtransGateway(config *MidtransConfig) *MidtransGateway {
	env := midtrans.Sandbox
	if config.IsProduction {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(config.ServerKey, env)

	g := &MidtransGateway{
		config: config,
		snap:   &client,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	g.baseURL = g.getBaseURL()
	return g
}

// ValidateConfig validates Midtrans configuration
func (g *MidtransGateway) ValidateConfig() error {
	if g.config.ServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY is not set")
	}
	if g.config.ClientKey == "" {
		return fmt.Errorf("MIDTRANS_CLIENT_KEY is not set")
	}
	if g.config.WebhookURL == "" {
		return fmt.Errorf("MIDTRANS_WEBHOOK_URL is not set")
	}
	return nil
}

// CreateDeposit opens a Snap transaction for the booking's deposit. The
// booking code is the Midtrans order id.
func (g *MidtransGateway) CreateDeposit(_ context.Context, booking *models.Booking) (DepositIntent, error) {
	amount := booking.DepositAmount.Ceil().IntPart()
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  booking.BookingCode,
			GrossAmt: amount,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    booking.BookingCode,
				Name:  "Table booking deposit",
				Price: amount,
				Qty:   1,
			},
		},
	}
	if g.config.FinishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: g.config.FinishURL}
	}

	resp, merr := g.snap.CreateTransaction(req)
	if merr != nil {
		return DepositIntent{}, fmt.Errorf("midtrans create transaction: %s", merr.Error())
	}
	if resp == nil || resp.Token == "" {
		return DepositIntent{}, fmt.Errorf("midtrans create transaction: empty response")
	}
	return DepositIntent{ID: resp.Token, RedirectURL: resp.RedirectURL, Method: "midtrans"}, nil
}

// CheckTransactionStatus checks transaction status from Midtrans
func (g *MidtransGateway) CheckTransactionStatus(ctx context.Context, orderID string) (string, error) {
	url := fmt.Sprintf("%s/v2/%s/status", g.baseURL, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(g.config.ServerKey+":")))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("midtrans API error: %s", string(body))
	}

	var statusResp struct {
		TransactionStatus string `json:"transaction_status"`
		FraudStatus       string `json:"fraud_status"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}
	return MapTransactionStatus(statusResp.TransactionStatus, statusResp.FraudStatus), nil
}

// ValidateSignature validates Midtrans signature
func (g *MidtransGateway) ValidateSignature(orderID, statusCode, grossAmount, signature string) bool {
	return Signature(orderID, statusCode, grossAmount, g.config.ServerKey) == signature
}

// Signature is sha512(order_id + status_code + gross_amount + server_key).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// MapTransactionStatus maps Midtrans transaction status to internal status.
// A captured card payment under fraud challenge is still pending.
func MapTransactionStatus(status, fraudStatus string) string {
	switch status {
	case "capture":
		if fraudStatus == "challenge" {
			return TransactionPending
		}
		return TransactionSuccess
	case "settlement":
		return TransactionSuccess
	case "pending", "authorize":
		return TransactionPending
	case "deny", "cancel", "expire", "failure":
		return TransactionFailed
	default:
		return TransactionUnknown
	}
}

// getBaseURL returns the appropriate Midtrans API base URL
func (g *MidtransGateway) getBaseURL() string {
	if g.config.IsProduction {
		return "https://api.midtrans.com"
	}
	return "https://api.sandbox.midtrans.com"
}
