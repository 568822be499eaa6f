package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"ms-bookstore/internal/config"
	"ms-bookstore/internal/logger"
	"ms-bookstore/internal/models"
	"ms-bookstore/internal/utils"
)

// Provider talks to the payment gateway. In sandbox mode no network call is
// made; session IDs are minted locally so the full checkout flow works in
// development and tests.
type Provider struct {
	client    *http.Client
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	sandbox   bool
	logger    *logger.Logger
}

func NewProvider(cfg config.PaymentConfig, log *logger.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL != "" && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		currency:  cfg.Currency,
		sandbox:   cfg.Sandbox,
		logger:    log,
	}
}

type createSessionRequest struct {
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession opens a gateway session for the given amount. The amount is
// the order's stored total; the gateway is never asked to price anything.
func (p *Provider) CreateSession(orderID string, amount float64) (*models.PaymentSession, error) {
	if p.sandbox {
		session := &models.PaymentSession{
			SessionID: utils.GenerateSessionID(),
			OrderID:   orderID,
			Amount:    amount,
			Currency:  p.currency,
			CreatedAt: time.Now(),
		}
		p.logger.Info("PAYMENT", fmt.Sprintf("Sandbox session %s for order %s", session.SessionID, orderID))
		return session, nil
	}

	body, err := json.Marshal(createSessionRequest{
		Amount:   int64(math.Round(amount * 100)),
		Currency: p.currency,
		Receipt:  orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions", p.baseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		p.logger.Error("PAYMENT", fmt.Sprintf("Failed to create session request: %v", err))
		return nil, fmt.Errorf("create session request: %w", err)
	}
	req.SetBasicAuth(p.keyID, p.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("PAYMENT", fmt.Sprintf("Payment gateway error: %v", err))
		return nil, fmt.Errorf("payment gateway error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			p.logger.Error("PAYMENT", fmt.Sprintf("Failed to close gateway response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		p.logger.Error("PAYMENT", fmt.Sprintf("Payment gateway returned status: %d", resp.StatusCode))
		return nil, fmt.Errorf("payment gateway returned status: %d", resp.StatusCode)
	}

	var decoded createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	p.logger.Info("PAYMENT", fmt.Sprintf("Gateway session %s for order %s", decoded.ID, orderID))
	return &models.PaymentSession{
		SessionID: decoded.ID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  p.currency,
		CreatedAt: time.Now(),
	}, nil
}
