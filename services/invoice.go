package services

import (
	"bytes"
	"strconv"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
)

// RenderInvoice builds the PDF invoice for a placed order. The order must have
// its Address and OrderItems loaded.
func RenderInvoice(order *models.Order, buyer models.User) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, utils.AppName)
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(8)
	pdf.Cell(100, 8, "Donations delivered to verified NGOs")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "INVOICE")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(50, 8, "Order ID: "+strconv.Itoa(int(order.ID)))
	pdf.Cell(60, 8, "Order Date: "+order.CreatedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(50, 8, "Payment: "+order.PaymentMethod)
	pdf.Cell(60, 8, "Reference: "+order.PaymentID)
	pdf.Ln(8)
	pdf.Cell(50, 8, "Status: "+order.Status)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(100, 8, "Billed To:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(100, 8, buyer.DisplayName())
	pdf.Ln(6)
	pdf.Cell(100, 8, buyer.Email)
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(100, 8, "Delivery Address:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(100, 8, order.Address.FullName+" ("+order.Address.Phone+")")
	pdf.Ln(6)
	pdf.Cell(100, 8, order.Address.Line)
	pdf.Ln(6)
	if order.Address.Landmark != "" {
		pdf.Cell(100, 8, "Near "+order.Address.Landmark)
		pdf.Ln(6)
	}
	pdf.Cell(100, 8, order.Address.City+", "+order.Address.State+" - "+order.Address.PostalCode)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(60, 8, "Product", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "NGO", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 8, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, "Total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 11)
	for _, item := range order.OrderItems {
		pdf.CellFormat(60, 8, item.ProductName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, item.NGOName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 8, strconv.Itoa(item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 8, utils.FormatAmount(item.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, utils.FormatAmount(item.Total), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	summary := [][2]string{
		{"Subtotal:", utils.FormatAmount(order.Subtotal)},
		{"Coupon Discount:", utils.FormatAmount(order.Discount)},
		{"Platform Fee:", utils.FormatAmount(order.PlatformFee)},
	}
	for _, line := range summary {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(145, 8, line[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(30, 8, line[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(145, 10, "Grand Total ("+order.Currency+"):", "", 0, "L", false, 0, "")
	pdf.CellFormat(30, 10, utils.FormatAmount(order.TotalAmount), "", 1, "R", false, 0, "")

	if order.CouponCode != nil {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, "Coupon applied: "+*order.CouponCode)
		pdf.Ln(8)
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 12)
	pdf.Cell(0, 10, "Thank you for donating with "+utils.AppName+"!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrapf(err, "render invoice for order %d", order.ID)
	}
	return buf.Bytes(), nil
}
