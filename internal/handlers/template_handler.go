package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"menu-service/internal/models"
)

// TemplateHandler serves downloadable import templates for both files of
// the bulk import flow.
type TemplateHandler struct{}

func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

// GetItemTemplate returns the items template definition or file
// GET /api/v1/menu/import/template?format=json|csv|xlsx
func (h *TemplateHandler) GetItemTemplate(c *gin.Context) {
	h.respondTemplate(c, models.ItemImportTemplate(), "menu_items_import_template", "Items")
}

// GetCategoryTemplate returns the category template definition or file
// GET /api/v1/menu/import/template/categories?format=json|csv|xlsx
func (h *TemplateHandler) GetCategoryTemplate(c *gin.Context) {
	h.respondTemplate(c, models.CategoryImportTemplate(), "menu_categories_import_template", "Categories")
}

func (h *TemplateHandler) respondTemplate(c *gin.Context, template models.ImportTemplate, filename, sheetName string) {
	switch c.DefaultQuery("format", "json") {
	case "csv":
		h.generateCSVTemplate(c, template, filename)
	case "xlsx":
		h.generateXLSXTemplate(c, template, filename, sheetName)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template with sample rows
func (h *TemplateHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate, filename string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename+".csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)

	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[col.Name]
		}
		writer.Write(row)
	}
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *TemplateHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate, filename, sheetName string) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	for rowIdx, sample := range template.SampleData {
		for i, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, sample[col.Name])
		}
	}

	h.addInstructionsSheet(f, template)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename+".xlsx")

	f.Write(c.Writer)
}

func (h *TemplateHandler) addInstructionsSheet(f *excelize.File, template models.ImportTemplate) {
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Bulk Menu Import Instructions")

	f.SetCellValue("Instructions", "A3", "IMPORT ORDER:")
	f.SetCellValue("Instructions", "A4", "1. Upload the categories file first (one category name per row).")
	f.SetCellValue("Instructions", "A5", "2. Upload the items file. Every category_label must match an existing category.")

	f.SetCellValue("Instructions", "A7", "PRICING:")
	f.SetCellValue("Instructions", "A8", "- base_price is required and is used as the price of the first variant.")
	f.SetCellValue("Instructions", "A9", "- If no variants are specified, a \"Regular\" variant is created at the base price.")
	f.SetCellValue("Instructions", "A10", "- Variants format: \"Small:199|Medium:299|Large:399\" (first price overridden by base_price).")
	f.SetCellValue("Instructions", "A11", "- Addons format: \"Extra Cheese:50|Mushrooms:30|Olives:25\".")

	f.SetCellValue("Instructions", "A13", "Column Definitions:")
	f.SetCellValue("Instructions", "A14", "Column")
	f.SetCellValue("Instructions", "B14", "Description")
	f.SetCellValue("Instructions", "C14", "Required")
	f.SetCellValue("Instructions", "D14", "Type")
	f.SetCellValue("Instructions", "E14", "Example")

	for i, col := range template.Columns {
		row := i + 15
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)
}
