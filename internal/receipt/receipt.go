// Package receipt renders order documents: a printable PDF receipt with a
// QR-coded order reference, and a spreadsheet of orders for staff.
package receipt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Simplici0/forma/internal/checkout"
)

// Receipt page layout on A4, in mm.
const (
	pageWidth   = 210.0
	marginLeft  = 15.0
	marginRight = 15.0
	marginTop   = 15.0
	qrSize      = 32.0
	lineHeight  = 6.0
	contentW    = pageWidth - marginLeft - marginRight
)

var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 10, "C"},
	{"Item", 70, "L"},
	{"Unit price", 35, "R"},
	{"Qty", 20, "C"},
	{"Line total", 45, "R"},
}

// qrPayload is encoded into the receipt QR code so staff can scan an order
// at pickup.
type qrPayload struct {
	OrderID string  `json:"order"`
	Total   float64 `json:"total"`
	Items   int     `json:"items"`
}

// fontFamily is the name the receipt font is registered under in each document.
const fontFamily = "body"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	defaultRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	defaultBold []byte
)

// Renderer draws PDF receipts using a UTF-8 TrueType font, so customer names
// and addresses outside Latin-1 are printed as entered.
type Renderer struct {
	regular []byte
	bold    []byte
}

// NewRenderer returns a Renderer using the TrueType font at fontFile for all
// text. An empty fontFile selects the bundled DejaVu Sans Condensed, which
// covers Latin, Greek and Cyrillic; scripts such as Devanagari need a font
// file that includes them.
func NewRenderer(fontFile string) (*Renderer, error) {
	if fontFile == "" {
		return &Renderer{regular: defaultRegular, bold: defaultBold}, nil
	}
	data, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("read receipt font: %w", err)
	}
	if err := checkFont(data); err != nil {
		return nil, fmt.Errorf("receipt font %s: %w", fontFile, err)
	}
	return &Renderer{regular: data, bold: data}, nil
}

// checkFont registers data in a scratch document; fpdf reports an unusable
// TrueType file only once the font is selected.
func checkFont(data []byte) error {
	if len(data) < 12 {
		return errors.New("not a TrueType font")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(fontFamily, "", data)
	pdf.SetFont(fontFamily, "", 10)
	return pdf.Error()
}

// WritePDF renders the receipt of an order to w.
func (r *Renderer) WritePDF(w io.Writer, order checkout.Order, currency string) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order %s has no items", order.ID)
	}
	if currency == "" {
		currency = "INR"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(fontFamily, "", r.regular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", r.bold)
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	if err := renderHeader(pdf, order); err != nil {
		return err
	}
	renderItems(pdf, order, currency)
	renderTotals(pdf, order, currency)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write receipt pdf: %w", err)
	}
	return nil
}

func renderHeader(pdf *fpdf.Fpdf, order checkout.Order) error {
	data, err := json.Marshal(qrPayload{OrderID: order.ID, Total: order.Total, Items: order.Quantity()})
	if err != nil {
		return fmt.Errorf("marshal qr payload: %w", err)
	}
	qrPNG, err := qrcode.Encode(string(data), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}

	imgName := "qr_" + order.ID
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions(imgName, pageWidth-marginRight-qrSize, marginTop, qrSize, qrSize, false, opts, 0, "")

	textW := contentW - qrSize - 5

	pdf.SetFont(fontFamily, "B", 18)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(textW, 10, "Forma order receipt", "", 2, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	lines := []string{
		"Order: " + order.ID,
		"Placed: " + order.CreatedAt.Format("2006-01-02 15:04 MST"),
		"Customer: " + order.ContactName + ", " + order.ContactPhone,
		"Delivery: " + deliveryLabel(order.DeliveryType),
	}
	for _, line := range lines {
		pdf.CellFormat(textW, lineHeight, line, "", 2, "L", false, 0, "")
	}
	if order.Address != "" {
		pdf.MultiCell(textW, lineHeight, "Address: "+order.Address, "", "L", false)
	}

	pdf.SetY(max(pdf.GetY(), marginTop+qrSize) + 6)
	return nil
}

func renderItems(pdf *fpdf.Fpdf, order checkout.Order, currency string) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range itemColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	for i, item := range order.Items {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("T-shirt %s, %s GSM", item.Size, item.MaterialKey),
			money(currency, item.UnitPrice),
			fmt.Sprintf("%d", item.Quantity),
			money(currency, item.UnitPrice*float64(item.Quantity)),
		}
		for j, col := range itemColumns {
			pdf.CellFormat(col.width, 7, cells[j], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)

		breakdown := item.Breakdown()
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(90, 90, 90)
		for _, key := range breakdownOrder {
			amount, ok := breakdown[key]
			if !ok || amount == "0.00" {
				continue
			}
			pdf.CellFormat(itemColumns[0].width, 5, "", "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW-itemColumns[0].width, 5, breakdownLabels[key]+": "+amount, "", 1, "L", false, 0, "")
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont(fontFamily, "", 10)
	}
}

func renderTotals(pdf *fpdf.Fpdf, order checkout.Order, currency string) {
	pdf.Ln(4)
	labelW := contentW - itemColumns[len(itemColumns)-1].width
	valueW := itemColumns[len(itemColumns)-1].width

	rows := []struct {
		label string
		value float64
		bold  bool
	}{
		{"Subtotal", order.Subtotal, false},
		{"Delivery", order.DeliveryCharge, false},
		{"Total", order.Total, true},
	}
	for _, row := range rows {
		style := ""
		if row.bold {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, 11)
		pdf.CellFormat(labelW, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(valueW, 7, money(currency, row.value), "", 1, "R", false, 0, "")
	}
}

var breakdownOrder = []string{
	"baseGSM",
	"flatAddon",
	"libraryAccess",
	"printFront",
	"printBack",
	"embroideryFront",
	"embroideryBack",
}

var breakdownLabels = map[string]string{
	"baseGSM":         "Base garment",
	"flatAddon":       "Custom design add-on",
	"libraryAccess":   "Library design",
	"printFront":      "Front print",
	"printBack":       "Back print",
	"embroideryFront": "Front embroidery",
	"embroideryBack":  "Back embroidery",
}

func deliveryLabel(t checkout.DeliveryType) string {
	switch t {
	case checkout.HomeDelivery:
		return "Home delivery"
	case checkout.StorePickup:
		return "Store pickup"
	default:
		return string(t)
	}
}

func money(currency string, v float64) string {
	return fmt.Sprintf("%s %.2f", currency, v)
}
