package reports

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/middleware"
)

type Handler struct {
	sales *Service
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{sales: NewService(db)}
}

type SalesReportRequest struct {
	StartDate string `form:"startDate"` // Format: 2024-01-01
	EndDate   string `form:"endDate"`   // Format: 2024-01-31
	BranchID  string `form:"branch_id"` // Optional branch filter for admins
}

func bindRange(c *gin.Context) (SalesReportRequest, Range, error) {
	var req SalesReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return req, Range{}, apperr.Validation("Invalid query")
	}
	r, err := ParseRange(req.StartDate, req.EndDate)
	return req, r, err
}

// GetShopSales returns the shop-wide total and daily breakdown, or one branch with ?branch_id=
func (h *Handler) GetShopSales(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	req, r, err := bindRange(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branchID := uuid.Nil
	if req.BranchID != "" {
		if branchID, err = uuid.Parse(req.BranchID); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid branch id"))
			return
		}
	}

	report, err := h.sales.Report(c.Request.Context(), shopID, branchID, r, false)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalSales": report.TotalSales, "data": report})
}

// GetBranchesSales returns the per-branch breakdown of the shop
func (h *Handler) GetBranchesSales(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	_, r, err := bindRange(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	branches, err := h.sales.PerBranch(c.Request.Context(), shopID, r)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": branches})
}

// GetBranchSales returns the caller's branch ledger and totals
func (h *Handler) GetBranchSales(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	branchID, err := middleware.BranchScope(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	_, r, err := bindRange(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	report, err := h.sales.Report(c.Request.Context(), shopID, branchID, r, true)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": report.Entries, "data": report})
}

// ExportSales writes the per-branch breakdown and daily sales as an xlsx workbook
func (h *Handler) ExportSales(c *gin.Context) {
	shopID, err := middleware.ShopID(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	_, r, err := bindRange(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	ctx := c.Request.Context()
	branches, err := h.sales.PerBranch(ctx, shopID, r)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	report, err := h.sales.Report(ctx, shopID, uuid.Nil, r, false)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	f, err := buildWorkbook(report, branches)
	if err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to generate report", err))
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportName(report)))
	if err := f.Write(c.Writer); err != nil {
		apperr.Respond(c, apperr.Unexpected("Failed to generate report", err))
	}
}

func exportName(report *SalesReport) string {
	switch {
	case report.StartDate != "" && report.EndDate != "":
		return fmt.Sprintf("sales_%s_%s.xlsx", report.StartDate, report.EndDate)
	case report.StartDate != "":
		return fmt.Sprintf("sales_from_%s.xlsx", report.StartDate)
	default:
		return "sales.xlsx"
	}
}

const (
	branchSheet = "Branches"
	dailySheet  = "Daily"
)

func buildWorkbook(report *SalesReport, branches []BranchSales) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", branchSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		f.Close()
		return nil, err
	}

	branchRows := [][]interface{}{{"Branch", "Orders", "Sales"}}
	for _, b := range branches {
		branchRows = append(branchRows, []interface{}{b.BranchName, b.Orders, b.Sales.InexactFloat64()})
	}
	branchRows = append(branchRows, []interface{}{"Total", report.Orders, report.TotalSales.InexactFloat64()})

	dailyRows := [][]interface{}{{"Date", "Orders", "Sales"}}
	for _, d := range report.DailySales {
		dailyRows = append(dailyRows, []interface{}{d.Date, d.Orders, d.Sales.InexactFloat64()})
	}

	for sheet, rows := range map[string][][]interface{}{branchSheet: branchRows, dailySheet: dailyRows} {
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				f.Close()
				return nil, err
			}
		}
		f.SetColWidth(sheet, "A", "A", 24)
		f.SetColWidth(sheet, "B", "C", 14)
	}
	return f, nil
}
