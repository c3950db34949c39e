package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// PDFEncoder renders a printable itinerary. When PublicURL is set the first
// page carries a QR code linking to the calendar download.
type PDFEncoder struct {
	PublicURL string
}

// PDFFilename is the attachment name used when downloading a PDF.
func PDFFilename(doc *itinerary.Document) string {
	return baseName(doc) + ".pdf"
}

// CalendarURL is the public address of the calendar export for doc.
func (e PDFEncoder) CalendarURL(doc *itinerary.Document) string {
	base := strings.TrimRight(strings.TrimSpace(e.PublicURL), "/")
	if base == "" {
		return ""
	}
	return base + "/export-ics/" + doc.ID
}

func (e PDFEncoder) Encode(doc *itinerary.Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(doc.Summary), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, tr(fmt.Sprintf("%s, %s", doc.Request.City, doc.Request.State)))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, tr(doc.Summary))
	pdf.Ln(8)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Budget: %s    Estimated total: $%.2f", doc.Request.Budget, doc.TotalCost)))
	pdf.Ln(12)

	if link := e.CalendarURL(doc); link != "" {
		png, err := qrcode.Encode(link, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to generate QR code: %w", err)
		}
		imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("calendar-qr", imageOpts, bytes.NewReader(png))
		pdf.ImageOptions("calendar-qr", 160, 10, 35, 35, false, imageOpts, 0, link)
	}

	for _, date := range doc.Request.Dates {
		entries := doc.EntriesOn(date)
		if len(entries) == 0 {
			continue
		}

		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, tr(dayHeading(date)))
		pdf.Ln(10)

		for _, entry := range entries {
			pdf.SetFont("Arial", "B", 11)
			pdf.Cell(30, 7, fmt.Sprintf("%s-%s", entry.StartTime, entry.EndTime))
			pdf.Cell(130, 7, tr(entry.Title))
			pdf.Cell(0, 7, fmt.Sprintf("$%.2f", entry.EstimatedCost))
			pdf.Ln(7)

			pdf.SetFont("Arial", "", 10)
			pdf.SetX(40)
			pdf.MultiCell(0, 5, tr(entry.Location), "", "L", false)
			if entry.Description != "" {
				pdf.SetX(40)
				pdf.MultiCell(0, 5, tr(entry.Description), "", "L", false)
			}
			if entry.TicketInfo != "" {
				pdf.SetX(40)
				pdf.MultiCell(0, 5, tr("Tickets: "+entry.TicketInfo), "", "L", false)
			}
			pdf.Ln(3)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func dayHeading(date string) string {
	t, err := time.Parse(itinerary.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}
