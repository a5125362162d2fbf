package receipt

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"showpass-core/internal/backend"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
	"showpass-core/internal/tickets"
)

// BackendClient is the slice of the boundary client the pipeline needs for
// its lazy joins and the email relay.
type BackendClient interface {
	EventByID(ctx context.Context, eventID int64) (*models.Event, error)
	TicketQR(ctx context.Context, ticketID int64) (*models.TicketQR, error)
	SendReceiptEmail(ctx context.Context, receipt backend.EmailReceipt) error
}

// DocumentGenerator renders assembled data into the final document bytes.
type DocumentGenerator interface {
	Generate(data Data) ([]byte, error)
}

// Pipeline assembles receipt documents on demand. Nothing is persisted: a
// receipt is rebuilt from the ticket, its event snapshot and its QR image on
// every download or send, which is exactly why clearing tickets without
// exporting first loses the receipt for good.
type Pipeline struct {
	backend  BackendClient
	gen      DocumentGenerator
	images   ImageLoader
	registry *tickets.Registry
	log      *logger.Logger
}

func NewPipeline(client BackendClient, gen DocumentGenerator, images ImageLoader, registry *tickets.Registry, log *logger.Logger) *Pipeline {
	return &Pipeline{
		backend:  client,
		gen:      gen,
		images:   images,
		registry: registry,
		log:      log,
	}
}

// Build assembles the document for one ticket. The event snapshot and QR
// are joined lazily here - the ticket list payload never carries them. Any
// missing data field aborts; only the event cover image degrades.
func (p *Pipeline) Build(ctx context.Context, ticket models.Ticket) ([]byte, error) {
	doc, _, err := p.assemble(ctx, ticket)
	return doc, err
}

func (p *Pipeline) assemble(ctx context.Context, ticket models.Ticket) ([]byte, *models.Event, error) {
	event, err := p.backend.EventByID(ctx, ticket.EventID)
	if err != nil {
		p.log.Error("RECEIPT", fmt.Sprintf("event %d unavailable for ticket %d: %v", ticket.EventID, ticket.ID, err))
		return nil, nil, fmt.Errorf("cannot build receipt, event unavailable: %w", err)
	}

	qrImage, err := p.qrImage(ctx, ticket)
	if err != nil {
		p.log.Error("RECEIPT", fmt.Sprintf("qr unavailable for ticket %d: %v", ticket.ID, err))
		return nil, nil, fmt.Errorf("cannot build receipt, qr unavailable: %w", err)
	}

	// Cover image failures degrade to the template's placeholder.
	eventImage, err := p.images.Load(ctx, event.Image)
	if err != nil {
		p.log.Warn("RECEIPT", fmt.Sprintf("event image for ticket %d degraded to placeholder: %v", ticket.ID, err))
		eventImage = nil
	}

	doc, err := p.gen.Generate(Data{
		Ticket:     ticket,
		Event:      *event,
		EventImage: eventImage,
		QRImage:    qrImage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	p.log.LogReceipt("BUILD", ticket.ID, fmt.Sprintf("%d bytes", len(doc)))
	return doc, event, nil
}

// qrImage prefers the reference already on the ticket, falls back to the
// on-demand QR lookup, and as a last resort renders the payload locally.
// The QR is data, not decoration: with nothing to show, assembly aborts.
func (p *Pipeline) qrImage(ctx context.Context, ticket models.Ticket) ([]byte, error) {
	ref := ticket.QRCode
	payload := ""

	if ref == "" {
		qr, err := p.backend.TicketQR(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		ref = qr.Image
		payload = qr.Payload
	}

	if ref != "" {
		img, err := p.images.Load(ctx, ref)
		if err == nil && len(img) > 0 {
			return img, nil
		}
		if err != nil {
			p.log.Warn("RECEIPT", fmt.Sprintf("qr image load failed for ticket %d, trying local render: %v", ticket.ID, err))
		}
	}

	if payload != "" {
		return RenderPayload(payload)
	}
	return nil, fmt.Errorf("no qr image or payload available")
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9-_]+`)

// Filename is the deterministic artifact name: sanitized event name plus
// ticket id.
func Filename(eventName string, ticketID int64) string {
	safe := unsafeFilename.ReplaceAllString(eventName, "_")
	return fmt.Sprintf("%s-%d.pdf", safe, ticketID)
}

// Download builds the document and saves it under dir. No server round-trip
// happens beyond the lazy joins in Build.
func (p *Pipeline) Download(ctx context.Context, ticket models.Ticket, dir string) (string, error) {
	doc, event, err := p.assemble(ctx, ticket)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	path := filepath.Join(dir, Filename(event.Name, ticket.ID))
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return "", fmt.Errorf("failed to save receipt: %w", err)
	}

	if p.registry != nil {
		p.registry.MarkExported(ticket.ID)
	}
	p.log.LogReceipt("DOWNLOAD", ticket.ID, path)
	return path, nil
}

// SendByEmail builds the document and relays it base64-encoded to the email
// boundary. Success or failure is reported once; there is no retry loop.
func (p *Pipeline) SendByEmail(ctx context.Context, ticket models.Ticket, address string) error {
	if address == "" {
		return &backend.ValidationError{Reason: "email address is required"}
	}

	doc, event, err := p.assemble(ctx, ticket)
	if err != nil {
		return err
	}

	err = p.backend.SendReceiptEmail(ctx, backend.EmailReceipt{
		Email:     address,
		TicketID:  fmt.Sprintf("TICKET-%d", ticket.ID),
		EventName: event.Name,
		PDFBase64: base64.StdEncoding.EncodeToString(doc),
	})
	if err != nil {
		p.log.Error("RECEIPT", fmt.Sprintf("email relay failed for ticket %d: %v", ticket.ID, err))
		return err
	}

	if p.registry != nil {
		p.registry.MarkExported(ticket.ID)
	}
	p.log.LogReceipt("EMAIL", ticket.ID, "sent to "+address)
	return nil
}
