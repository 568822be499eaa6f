package notification

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-bookstore/internal/models"
)

// InvoicePayload is what support scans off a printed invoice to pull up the
// order. Encrypted so the QR carries no readable customer data.
type InvoicePayload struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	Total    float64   `json:"total"`
	IsPaid   bool      `json:"is_paid"`
	IssuedAt time.Time `json:"issued_at"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateInvoiceQR encrypts the invoice payload and encodes it as a PNG QR.
func (q *QRGenerator) GenerateInvoiceQR(order *models.Order) ([]byte, error) {
	payload := InvoicePayload{
		OrderID:  order.OrderID,
		UserID:   order.UserID,
		Total:    order.TotalPrice,
		IsPaid:   order.IsPaid,
		IssuedAt: time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecryptInvoicePayload decodes the string scanned off an invoice QR back
// into the payload. Used by support tooling to look an order up from a print.
func (q *QRGenerator) DecryptInvoicePayload(encrypted string) (*InvoicePayload, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("encrypted payload too short")
	}

	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := ciphertext[aes.BlockSize:]
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, data)

	var payload InvoicePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
