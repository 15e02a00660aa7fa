package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Renderer turns a joined order into PDF bytes. The output only depends on
// the order, so rendering the same order twice yields identical documents.
type Renderer struct{}

// documentEpoch stands in for a missing order date so the PDF metadata never
// falls back to the current time.
var documentEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func NewRenderer() *Renderer { return &Renderer{} }

// Content returns the text lines printed on the invoice, in order.
func (r *Renderer) Content(order *models.Order) ([]string, error) {
	if order == nil {
		return nil, &apperrors.RenderError{Reason: "order is nil"}
	}
	if strings.TrimSpace(order.Name) == "" {
		return nil, &apperrors.RenderError{OrderID: order.ID, Reason: "customer name is missing"}
	}
	if len(order.Lines) == 0 {
		return nil, &apperrors.RenderError{OrderID: order.ID, Reason: "order has no lines"}
	}

	content := []string{
		fmt.Sprintf("Invoice for Order #%d", order.ID),
		fmt.Sprintf("Name: %s %s", order.Name, order.Surname),
		fmt.Sprintf("Email: %s", order.Email),
		fmt.Sprintf("Address: %s, %s, %s", order.Address, order.City, order.Country),
		fmt.Sprintf("Postal Code: %s", order.PostalCode),
		"Items:",
	}
	for _, l := range order.Lines {
		name := l.ProductName
		if name == "" {
			name = fmt.Sprintf("Product #%d", l.ProductID)
		}
		content = append(content, fmt.Sprintf("%s - %d x %s = %s", name, l.Quantity, money(l.Price), money(l.TotalPrice)))
	}
	content = append(content, "Total: "+money(order.TotalPrice))
	return content, nil
}

func (r *Renderer) Render(order *models.Order) ([]byte, error) {
	content, err := r.Content(order)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	created := order.CreatedAt
	if created.IsZero() {
		created = documentEpoch
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetTitle(content[0], false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(content[0]), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range content[1:5] {
		pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "U", 12)
	pdf.CellFormat(0, 7, tr(content[5]), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, line := range content[6 : len(content)-1] {
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(content[len(content)-1]), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &apperrors.RenderError{OrderID: order.ID, Reason: "pdf output", Err: err}
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
