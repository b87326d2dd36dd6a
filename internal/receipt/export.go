package receipt

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/forma/internal/checkout"
)

const ordersSheet = "Orders"

var orderHeaders = []string{
	"Order ID",
	"Created At",
	"Delivery",
	"Contact",
	"Phone",
	"Address",
	"Subtotal",
	"Delivery Charge",
	"Total",
	"Status",
}

// WriteOrdersXLSX writes one spreadsheet row per order to w.
func WriteOrdersXLSX(w io.Writer, orders []checkout.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ordersSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for col, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(ordersSheet, cell, header); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}

	for row, order := range orders {
		data := []any{
			order.ID,
			order.CreatedAt.Format("2006-01-02 15:04"),
			string(order.DeliveryType),
			order.ContactName,
			order.ContactPhone,
			order.Address,
			order.Subtotal,
			order.DeliveryCharge,
			order.Total,
			order.Status,
		}
		for col, value := range data {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(ordersSheet, cell, value); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(orderHeaders), 1)
	if err := f.SetCellStyle(ordersSheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write orders spreadsheet: %w", err)
	}
	return nil
}
