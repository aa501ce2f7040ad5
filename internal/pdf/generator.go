package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/cnc-service/internal/model"
)

const fontName = "Helvetica"

type Generator struct {
	companyName string
}

func NewGenerator(companyName string) *Generator {
	if strings.TrimSpace(companyName) == "" {
		companyName = "CNC Service"
	}
	return &Generator{companyName: companyName}
}

// Render lays out a quote, purchase order or invoice on a single A4 page.
func (g *Generator) Render(in model.DocumentRender) ([]byte, error) {
	doc := in.Document
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 16)
	pdf.CellFormat(0, 10, tr(g.companyName), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s %s", doc.Type.Label(), doc.Number)), "", 1, "R", false, 0, "")

	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Date: %s", formatDate(doc.CreatedAt)), "", 1, "R", false, 0, "")
	if doc.ValidUntil != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Valid until: %s", formatDate(*doc.ValidUntil)), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", strings.ReplaceAll(string(doc.Status), "_", " ")), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	addPartyBlock(pdf, tr, "Client", in.Client, in.WorkOrder.ClientName)
	pdf.Ln(2)
	addWorkOrderBlock(pdf, tr, in.WorkOrder)
	pdf.Ln(4)

	headers := []string{"Description", "Qty", "Unit price", "Total"}
	colWidths := []float64{100, 20, 30, 30}
	drawTableRow(pdf, headers, colWidths, true)
	for _, item := range doc.Items {
		drawTableRow(pdf, []string{
			tr(item.Description),
			formatQuantity(item.Quantity),
			formatAmount(item.UnitPrice),
			formatAmount(item.Total),
		}, colWidths, false)
	}

	pdf.Ln(2)
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Subtotal: %s", formatAmount(doc.Subtotal)), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Tax (%s%%): %s", formatRate(doc.TaxRate), formatAmount(doc.TaxAmount)), "", 1, "R", false, 0, "")
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %s", formatAmount(doc.Total)), "", 1, "R", false, 0, "")

	if strings.TrimSpace(doc.Notes) != "" {
		pdf.Ln(4)
		pdf.SetFont(fontName, "B", 11)
		pdf.CellFormat(0, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, tr(doc.Notes), "", "L", false)
	}

	pdf.Ln(6)
	signatureBlock(pdf, tr, doc)

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addPartyBlock(pdf *gofpdf.Fpdf, tr func(string) string, title string, profile model.Profile, fallbackName string) {
	name := profile.FullName
	if name == "" {
		name = fallbackName
	}
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	pdf.MultiCell(0, 5, tr(safeValue(name)), "", "L", false)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf("Email: %s", safeValue(profile.Email))), "", "L", false)
}

func addWorkOrderBlock(pdf *gofpdf.Fpdf, tr func(string) string, wo model.WorkOrder) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Work order", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		fmt.Sprintf("%s  %s", wo.ID, wo.Title),
		fmt.Sprintf("Service: %s", strings.ReplaceAll(string(wo.Type), "_", " ")),
	}
	if wo.MachineID != nil && *wo.MachineID != "" {
		lines = append(lines, fmt.Sprintf("Machine: %s", *wo.MachineID))
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, tr func(string) string, doc model.Document) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Client signature", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)

	if doc.ClientSignature == nil || *doc.ClientSignature == "" {
		pdf.CellFormat(0, 12, "______________________________", "", 1, "L", false, 0, "")
		return
	}
	if !drawSignatureImage(pdf, *doc.ClientSignature) {
		pdf.CellFormat(0, 6, "Signed electronically", "", 1, "L", false, 0, "")
	}
	signer := ""
	if doc.SignedBy != nil {
		signer = *doc.SignedBy
	}
	signedAt := "-"
	if doc.SignedAt != nil {
		signedAt = doc.SignedAt.UTC().Format("02.01.2006 15:04 MST")
	}
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s, %s", safeValue(signer), signedAt)), "", 1, "L", false, 0, "")
}

// drawSignatureImage embeds PNG or JPEG data URLs. Other payloads are left out.
func drawSignatureImage(pdf *gofpdf.Fpdf, signature string) bool {
	imageType := ""
	switch {
	case strings.HasPrefix(signature, "data:image/png;base64,"):
		imageType = "PNG"
	case strings.HasPrefix(signature, "data:image/jpeg;base64,"), strings.HasPrefix(signature, "data:image/jpg;base64,"):
		imageType = "JPG"
	default:
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(signature[strings.Index(signature, ",")+1:])
	if err != nil {
		return false
	}
	name := fmt.Sprintf("signature-%d", len(raw))
	info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(raw))
	if info == nil || pdf.Error() != nil {
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(name, pdf.GetX(), pdf.GetY(), 60, 0, true, gofpdf.ImageOptions{ImageType: imageType}, 0, "")
	return true
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value float64) string {
	return fmt.Sprintf("$%.2f", value)
}

func formatQuantity(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.2f", value)
}

func formatRate(rate float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", rate*100), "0"), ".")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
