package receipt

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/signintech/gopdf"

	"showpass-core/internal/models"
)

// Data is everything the fixed template needs, assembled by the pipeline.
// QRImage is mandatory; EventImage may be nil and degrades to a plain band.
type Data struct {
	Ticket     models.Ticket
	Event      models.Event
	EventImage []byte
	QRImage    []byte
}

// Generator renders the A5 receipt: SHOWPASS header band, blue event band
// with cover image, details and embedded QR, grey identification band, and
// the resale/refund notice.
type Generator struct {
	FontPath string
}

func NewGenerator(fontPath string) *Generator {
	if fontPath == "" {
		fontPath = "fonts/DejaVuSans.ttf"
	}
	return &Generator{FontPath: fontPath}
}

func (g *Generator) Generate(data Data) ([]byte, error) {
	if len(data.QRImage) == 0 {
		return nil, fmt.Errorf("receipt requires a qr image")
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA5})
	pdf.AddPage()

	if err := pdf.AddTTFFont("receipt", g.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	pageWidth := gopdf.PageSizeA5.W

	// Header band.
	pdf.SetFillColor(230, 236, 247)
	pdf.RectFromUpperLeftWithStyle(0, 0, pageWidth, 50, "F")
	pdf.SetTextColor(0, 45, 98)
	if err := pdf.SetFont("receipt", "", 18); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(20, 16)
	pdf.Cell(nil, "SHOWPASS")

	// Event band.
	pdf.SetFillColor(0, 45, 98)
	pdf.RectFromUpperLeftWithStyle(0, 50, pageWidth, 130, "F")

	if err := g.placeImage(pdf, data.EventImage, 20, 65, 100, 100); err != nil {
		// Image-only degradation: the band stays, the data fields do not move.
		pdf.SetXY(20, 110)
		_ = pdf.SetFont("receipt", "", 8)
		pdf.SetTextColor(255, 255, 255)
		pdf.Cell(nil, "[sin imagen]")
	}

	pdf.SetTextColor(255, 221, 0)
	if err := pdf.SetFont("receipt", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(135, 65)
	pdf.Cell(nil, data.Event.Name)

	pdf.SetTextColor(255, 255, 255)
	if err := pdf.SetFont("receipt", "", 10); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	lines := []string{
		"Inicio del evento: " + formatDateTime(data.Event.Start),
		"Fecha de compra: " + formatDateTime(data.Ticket.PurchasedAt),
		"Precio: " + formatPrice(data.Ticket.PricePaid),
	}
	y := 90.0
	for _, line := range lines {
		pdf.SetXY(135, y)
		pdf.Cell(nil, line)
		y += 16
	}

	if err := g.placeImage(pdf, data.QRImage, pageWidth-110, 65, 90, 90); err != nil {
		return nil, fmt.Errorf("failed to embed qr image: %w", err)
	}

	// Identification band.
	pdf.SetFillColor(245, 245, 245)
	pdf.RectFromUpperLeftWithStyle(0, 180, pageWidth, 110, "F")
	pdf.SetTextColor(0, 0, 0)
	info := []string{
		fmt.Sprintf("ID Ticket: %d", data.Ticket.ID),
		fmt.Sprintf("Usuario ID: %d", data.Ticket.UserID),
		fmt.Sprintf("Evento ID: %d", data.Ticket.EventID),
		"Nombre del evento: " + data.Event.Name,
		"Inicio del evento: " + formatDateTime(data.Event.Start),
	}
	y = 192
	for _, line := range info {
		pdf.SetXY(20, y)
		pdf.Cell(nil, line)
		y += 16
	}

	if err := pdf.SetFont("receipt", "", 8); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(20, 300)
	pdf.Cell(nil, "Prohibida la reventa. No reembolsable. Mostrar en la entrada del evento.")

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) placeImage(pdf *gopdf.GoPdf, raw []byte, x, y, w, h float64) error {
	if len(raw) == 0 {
		return fmt.Errorf("no image data")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	return pdf.ImageFrom(img, x, y, &gopdf.Rect{W: w, H: h})
}

// formatDateTime renders the backend's ISO timestamp as dd/MM/yyyy HH:mm,
// falling back to the raw string when it doesn't parse.
func formatDateTime(iso string) string {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Format("02/01/2006 15:04")
		}
	}
	return iso
}

func formatPrice(price float64) string {
	return fmt.Sprintf("%.2f €", price)
}
