// Package export renders the catalog with computed sale prices as an
// Excel workbook for the admin to hand out.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"lista-precios/internal/catalog"
	"lista-precios/internal/pricing"
)

const sheetName = "Lista de Precios"

// PriceList builds a workbook with one row per product: supplier cost,
// applied margin and the final sale price under the given configuration.
// The caller owns the returned file and must Close it.
func PriceList(products []catalog.Product, cfg pricing.Config) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"ID", "Producto", "Categoría", "Costo USD", "Costo ARS", "Ganancia %", "Precio Final ARS"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	for row, p := range products {
		q := pricing.EffectivePrice(p, cfg)
		values := []any{
			p.ID,
			p.Name,
			p.Category,
			pricing.FormatNumber(p.PriceUsd),
			pricing.FormatNumber(q.CostARS),
			q.AppliedMarginPercent,
			pricing.FormatNumber(q.FinalPrice),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	summary := fmt.Sprintf("Cotización: $%s", pricing.FormatNumber(cfg.DollarRate))
	cell, _ := excelize.CoordinatesToCellName(1, len(products)+3)
	f.SetCellValue(sheetName, cell, summary)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellStyle(sheetName, "A1", "G1", style)

	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	return f, nil
}
