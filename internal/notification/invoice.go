package notification

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"ms-bookstore/internal/models"
)

type InvoicePDFGenerator struct{}

func NewInvoicePDFGenerator() *InvoicePDFGenerator {
	return &InvoicePDFGenerator{}
}

// Generate renders the order invoice as a single A4 page with the line items,
// the price breakdown and the support QR at the bottom.
func (g *InvoicePDFGenerator) Generate(order *models.Order, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	err := pdf.AddTTFFont("dejavu", "./fonts/DejaVuSans.ttf")
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	err = pdf.SetFont("dejavu", "", 14)
	if err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf, order)

	pdf.SetY(80)
	addItems(pdf, order)

	pdf.SetY(pdf.GetY() + 20)
	addTotals(pdf, order)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(790)
	addFooter(pdf)

	var buf bytes.Buffer
	err = pdf.Write(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, order *models.Order) {
	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, "BOOKSTORE INVOICE")
	pdf.Br(20)
	pdf.SetX(40)
	pdf.Cell(nil, "Order: "+order.OrderID)
	pdf.Br(20)
	pdf.SetX(40)
	pdf.Cell(nil, "Placed: "+order.CreatedAt.Format("2006-01-02 15:04"))
}

func addItems(pdf *gopdf.GoPdf, order *models.Order) {
	for _, item := range order.Items {
		pdf.SetX(40)
		line := fmt.Sprintf("%s  x%d  @ %.2f", item.Title, item.Quantity, item.UnitPrice)
		pdf.Cell(nil, line)
		pdf.Br(20)
	}
}

func addTotals(pdf *gopdf.GoPdf, order *models.Order) {
	rows := []struct {
		Label string
		Value float64
	}{
		{"Items", order.ItemsPrice},
		{"Tax", order.TaxPrice},
		{"Shipping", order.ShippingPrice},
		{"Discount", -order.DiscountAmount},
		{"Total", order.TotalPrice},
	}

	for _, row := range rows {
		pdf.SetX(40)
		pdf.Cell(nil, fmt.Sprintf("%s: %.2f", row.Label, row.Value))
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 100, H: 100}
	err = pdf.ImageFrom(img, 100, pdf.GetY(), rect)
	if err != nil {
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(50)
	pdf.Cell(nil, "Thank you for shopping with us.")
}
