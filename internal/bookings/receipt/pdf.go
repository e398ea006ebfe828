package receipt

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"hallbook/pkg/logger"
	"hallbook/pkg/model"
	"hallbook/pkg/sanitizer"

	"github.com/phpdave11/gofpdf"
)

const (
	DefaultBrandName      = "Halldekho"
	DefaultSupportEmail   = "halldekho17@gmail.com"
	DefaultRegisteredAddr = "Jammu, India"

	logoImageName = "receipt-logo"
	currency      = "INR"
)

type Options struct {
	LogoPath       string
	BrandName      string
	SupportEmail   string
	RegisteredAddr string
	// Compress deflates page streams. Disabled in tests to inspect text.
	Compress bool
}

// PDFRenderer draws booking receipts with gofpdf. Output for a given snapshot
// is byte-stable: document dates are pinned to the confirmation time and the
// catalog is written in sorted order.
type PDFRenderer struct {
	opts    Options
	logo    []byte
	logoFmt string
	log     *logger.Logger
}

// NewPDFRenderer loads the optional logo once. A missing or unreadable logo
// is logged and the receipt is drawn without it.
func NewPDFRenderer(opts Options, log *logger.Logger) *PDFRenderer {
	if opts.BrandName == "" {
		opts.BrandName = DefaultBrandName
	}
	if opts.SupportEmail == "" {
		opts.SupportEmail = DefaultSupportEmail
	}
	if opts.RegisteredAddr == "" {
		opts.RegisteredAddr = DefaultRegisteredAddr
	}

	r := &PDFRenderer{opts: opts, log: log}
	if opts.LogoPath == "" {
		return r
	}

	data, err := os.ReadFile(opts.LogoPath)
	if err != nil {
		log.Warn("Receipt logo unavailable, rendering without it", "path", opts.LogoPath, "error", err)
		return r
	}
	r.logo = data
	r.logoFmt = imageType(opts.LogoPath)
	return r
}

func (r *PDFRenderer) Render(s *model.ReceiptSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.ConfirmedAt)
	pdf.SetModificationDate(s.ConfirmedAt)
	pdf.SetTitle("Booking Receipt "+s.BookingID, false)
	pdf.SetAuthor(r.opts.BrandName, false)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() { r.drawFooter(pdf) })
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	r.drawBranding(pdf)
	r.drawHeader(pdf, tr, s)

	r.section(pdf, tr, "Booking Details", []string{
		"Hall Name: " + safe(s.Hall.Name, "-"),
		"Booking Date: " + s.Day.Format("Mon Jan 02 2006"),
		"Booking Status: " + statusLabel(s.Status),
		"Payment Mode: External (Offline)",
	})

	r.section(pdf, tr, "Booked By", []string{
		"Name: " + safe(s.ConsumerName, "-"),
		"Email: " + safe(s.ConsumerEmail, "-"),
	})

	hallLines := []string{
		"Veg Plate Price: " + money(s.Hall.VegPlatePrice),
		"Non-Veg Plate Price: " + money(s.Hall.NonVegPlatePrice),
	}
	if s.Hall.RoomPrice > 0 {
		hallLines = append(hallLines, "Room Price: "+money(s.Hall.RoomPrice))
	}
	hallLines = append(hallLines,
		fmt.Sprintf("Accommodation: %d guests", s.Hall.Accommodation),
		"Amenities: "+safe(strings.Join(s.Hall.Amenities, ", "), "-"),
		"Address: "+safe(address(s.Hall.Location), "-"),
	)
	if s.Hall.Phone != "" {
		hallLines = append(hallLines, "Contact: "+sanitizer.NormalizePhone(s.Hall.Phone))
	}
	r.section(pdf, tr, "Hall Details", hallLines)

	r.section(pdf, tr, "Payment Summary", []string{
		"Payment Status: " + statusLabel(s.Status),
		"Payment Method: Offline (Handled directly by hall owner)",
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", s.BookingID, err)
	}
	return buf.Bytes(), nil
}

// drawBranding places the logo banner and a faded watermark. Any image error
// is cleared so the rest of the document still renders.
func (r *PDFRenderer) drawBranding(pdf *gofpdf.Fpdf) {
	if r.logo == nil {
		pdf.Ln(10)
		return
	}

	pageW, pageH := pdf.GetPageSize()
	info := pdf.RegisterImageOptionsReader(logoImageName, gofpdf.ImageOptions{ImageType: r.logoFmt}, bytes.NewReader(r.logo))
	if !pdf.Ok() || info == nil {
		r.log.Warn("Receipt logo could not be decoded, rendering without it", "error", pdf.Error())
		pdf.ClearError()
		pdf.Ln(10)
		return
	}

	opts := gofpdf.ImageOptions{ImageType: r.logoFmt}
	pdf.SetAlpha(0.08, "Normal")
	mark := pageW * 0.6
	pdf.ImageOptions(logoImageName, (pageW-mark)/2, (pageH-mark)/2, mark, 0, false, opts, 0, "")
	pdf.SetAlpha(1, "Normal")

	pdf.ImageOptions(logoImageName, 0, 0, pageW, 50, false, opts, 0, "")
	pdf.SetY(55)
}

func (r *PDFRenderer) drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, s *model.ReceiptSnapshot) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(0x1e, 0x3a, 0x8a)
	pdf.CellFormat(0, 12, tr("Booking Receipt"), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0x44, 0x44, 0x44)
	pdf.CellFormat(0, 6, tr("Receipt ID: "+s.BookingID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr("Issued on: "+s.ConfirmedAt.Format("02 Jan 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(8)
}

func (r *PDFRenderer) section(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")

	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.SetDrawColor(0xcc, 0xcc, 0xcc)
	pdf.Line(left, y, pageW-right, y)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0x33, 0x33, 0x33)
	for _, line := range lines {
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
	}
	pdf.Ln(5)
}

func (r *PDFRenderer) drawFooter(pdf *gofpdf.Fpdf) {
	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0x1e, 0x3a, 0x8a)
	pdf.CellFormat(0, 6, fmt.Sprintf("Thank you for choosing %s!", r.opts.BrandName), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.CellFormat(0, 5, "Need help? Contact "+r.opts.SupportEmail, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("%s Registered Address: %s", r.opts.BrandName, r.opts.RegisteredAddr), "", 1, "C", false, 0, "")
}

func statusLabel(status model.BookingStatus) string {
	if status == "" {
		return "-"
	}
	return strings.ToUpper(string(status[:1])) + string(status[1:])
}

func money(v float64) string {
	return fmt.Sprintf("%s %.2f", currency, v)
}

func address(loc model.Location) string {
	return sanitizer.JoinAddress(loc.Address, loc.City, loc.State)
}

func safe(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func imageType(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "PNG"
	case strings.HasSuffix(lower, ".gif"):
		return "GIF"
	default:
		return "JPG"
	}
}
