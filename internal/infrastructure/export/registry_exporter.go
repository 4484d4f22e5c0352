package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/service"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/overdue"
)

const registrySheet = "Registry"

var registryHeader = []interface{}{
	"Invoice ID", "Number", "Counterparty", "Object", "Category", "Account",
	"Due date", "Days until due", "Bucket", "Amount gross", "Approved by",
}

// RegistryExporter writes the payment registry as an Excel workbook
type RegistryExporter struct {
	logger *zap.Logger
}

// NewRegistryExporter creates a new registry exporter
func NewRegistryExporter(logger *zap.Logger) *RegistryExporter {
	return &RegistryExporter{logger: logger}
}

// Write renders rows into a single-sheet workbook followed by a total line
func (e *RegistryExporter) Write(w io.Writer, rows []service.RegistryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registrySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	overdueStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#C00000"},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(registrySheet, "A1", &registryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetRowStyle(registrySheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	var total float64
	for i, row := range rows {
		rowNum := i + 2
		inv := row.Invoice
		gross, _ := inv.Gross().Float64()
		total += gross

		values := []interface{}{
			inv.ID,
			stringOrEmpty(inv.Number),
			inv.CounterpartyID,
			inv.ObjectID,
			inv.CategoryID,
			inv.AccountID,
			entity.FormatDate(inv.DueDate),
			intOrEmpty(row.DaysUntil),
			string(row.Bucket),
			gross,
			inv.ApprovedBy,
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(registrySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowNum, err)
		}
		if row.Bucket == overdue.BucketOverdue {
			if err := f.SetRowStyle(registrySheet, rowNum, rowNum, overdueStyle); err != nil {
				return fmt.Errorf("failed to style row %d: %w", rowNum, err)
			}
		}
	}

	totalRow := len(rows) + 2
	if err := f.SetCellValue(registrySheet, fmt.Sprintf("I%d", totalRow), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(registrySheet, fmt.Sprintf("J%d", totalRow), total); err != nil {
		return err
	}

	if err := f.SetColWidth(registrySheet, "A", "K", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Registry exported", zap.Int("rows", len(rows)))
	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) interface{} {
	if n == nil {
		return ""
	}
	return *n
}
