package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	CreatedCount int      `json:"created_count"`
	UpdatedCount int      `json:"updated_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	Line        int
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Variations  []string
}

var (
	nameColumns        = []string{"product name", "name", "product", "item"}
	categoryColumns    = []string{"category", "category name"}
	priceColumns       = []string{"price", "unit price"}
	descriptionColumns = []string{"description", "details"}
	variationColumns   = []string{"variations", "variation", "options"}
)

// ImportProducts handles Excel/CSV file upload for bulk product import
func (h *Handler) ImportProducts(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apperr.Respond(c, apperr.Validation("No file uploaded"))
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)

	switch {
	case strings.HasSuffix(fileName, ".xlsx"):
		rows, err = parseExcel(file)
	case strings.HasSuffix(fileName, ".csv"):
		rows, err = parseCSV(file)
	default:
		apperr.Respond(c, apperr.Validation("Unsupported file format. Please upload .xlsx or .csv"))
		return
	}
	if err != nil {
		apperr.Respond(c, apperr.Validation("Failed to parse file: %v", err))
		return
	}

	result := h.store.Import(shopID, rows)
	h.logger.LogActivity(c, "import", "product", nil, map[string]interface{}{
		"file":    header.Filename,
		"created": result.CreatedCount,
		"updated": result.UpdatedCount,
		"failed":  result.FailedCount,
	})

	message := fmt.Sprintf("Import completed: %d created, %d updated, %d failed",
		result.CreatedCount, result.UpdatedCount, result.FailedCount)
	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": message,
	})
}

// Import creates or updates products by name. Unknown categories are created.
func (s *Store) Import(shopID uuid.UUID, rows []ImportRow) ImportResult {
	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}
	fail := func(row ImportRow, format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: ", row.Line)+fmt.Sprintf(format, args...))
		result.FailedCount++
	}

	for _, row := range rows {
		if row.Category == "" {
			fail(row, "Category is required for %s", row.Name)
			continue
		}
		if !row.Price.IsPositive() {
			fail(row, "Price must be greater than zero for %s", row.Name)
			continue
		}

		created := false
		err := s.db.Transaction(func(tx *gorm.DB) error {
			category, err := s.importCategory(tx, shopID, row.Category)
			if err != nil {
				return err
			}

			var existing database.Product
			err = tx.Where("shop_id = ? AND name = ?", shopID, row.Name).First(&existing).Error
			switch {
			case err == nil:
				updates := map[string]interface{}{
					"price":       row.Price,
					"category_id": category.ID,
					"status":      true,
				}
				if row.Description != "" {
					updates["description"] = row.Description
				}
				if len(row.Variations) > 0 {
					updates["variations"] = pq.StringArray(row.Variations)
				}
				return tx.Model(&existing).Updates(updates).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				created = true
				return tx.Create(&database.Product{
					ShopID:      shopID,
					CategoryID:  category.ID,
					Name:        row.Name,
					Price:       row.Price,
					Description: row.Description,
					Variations:  pq.StringArray(row.Variations),
					Status:      true,
				}).Error
			default:
				return err
			}
		})
		if err != nil {
			fail(row, "Failed to save %s - %v", row.Name, err)
			continue
		}
		if created {
			result.CreatedCount++
		} else {
			result.UpdatedCount++
		}
	}
	return result
}

// importCategory finds the named category, reactivating or creating it as needed
func (s *Store) importCategory(tx *gorm.DB, shopID uuid.UUID, name string) (*database.Category, error) {
	var category database.Category
	err := tx.Where("shop_id = ? AND name = ?", shopID, name).First(&category).Error
	switch {
	case err == nil:
		if !category.Status {
			if err := tx.Model(&category).Update("status", true).Error; err != nil {
				return nil, err
			}
		}
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		category = database.Category{ShopID: shopID, Name: name, Status: true}
		return &category, tx.Create(&category).Error
	default:
		return nil, err
	}
}

// parseExcel parses .xlsx files
func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return parseRecords(rows)
}

// parseCSV parses .csv files
func parseCSV(file io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

// parseRecords maps rows to products using the header row to find columns
func parseRecords(records [][]string) ([]ImportRow, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	colMap := make(map[string]int)
	for i, cell := range records[0] {
		colMap[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	if _, ok := lookup(colMap, records[0], nameColumns); !ok {
		return nil, fmt.Errorf("missing product name column")
	}

	var result []ImportRow
	for i, row := range records[1:] {
		if len(row) == 0 {
			continue
		}

		importRow := ImportRow{Line: i + 2}
		importRow.Name, _ = lookup(colMap, row, nameColumns)
		importRow.Category, _ = lookup(colMap, row, categoryColumns)
		importRow.Description, _ = lookup(colMap, row, descriptionColumns)
		if raw, ok := lookup(colMap, row, priceColumns); ok {
			if val, err := decimal.NewFromString(raw); err == nil {
				importRow.Price = val
			}
		}
		if raw, ok := lookup(colMap, row, variationColumns); ok && raw != "" {
			for _, v := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
				if v = strings.TrimSpace(v); v != "" {
					importRow.Variations = append(importRow.Variations, v)
				}
			}
		}

		if importRow.Name != "" {
			result = append(result, importRow)
		}
	}
	return result, nil
}

// lookup returns the trimmed cell of the first known column present in row
func lookup(colMap map[string]int, row []string, names []string) (string, bool) {
	for _, col := range names {
		if idx, ok := colMap[col]; ok {
			if idx < len(row) {
				return strings.TrimSpace(row[idx]), true
			}
			return "", true
		}
	}
	return "", false
}

// DownloadTemplate generates a sample Excel template for import
func (h *Handler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Product Name", "Category", "Price", "Description", "Variations"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	sampleData := [][]interface{}{
		{"Chicken Biryani", "Rice", 650, "Spiced basmati rice with chicken", "Half, Full"},
		{"Zinger Burger", "Burgers", 550, "Crispy fillet burger", ""},
		{"Mint Margarita", "Drinks", 300, "", "Regular, Large"},
	}

	for rowIdx, row := range sampleData {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	f.SetColWidth("Sheet1", "A", "B", 20)
	f.SetColWidth("Sheet1", "C", "C", 12)
	f.SetColWidth("Sheet1", "D", "E", 30)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=product_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to generate template", err))
		return
	}
}
