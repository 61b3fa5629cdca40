package ingest

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/stipend/core/assignment"
)

const (
	TemplateFilename = "BulkUploadTemplate.csv"
	ExportSheet      = "Assignments"
)

// WriteTemplate writes the header line of the 5-field upload template.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeader); err != nil {
		return errors.Wrap(err, "writing template")
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing template")
}

var exportHeader = []string{
	"ID", "Version", "Student_ID", "ASUrite", "First_Name", "Last_Name", "Email", "EducationLevel",
	"Position", "WeeklyHours", "FultonFellow", "Subject", "CatalogNum", "ClassSession", "ClassNum", "Term",
	"Instructor", "Location", "Campus", "AcadCareer", "Compensation", "CostCenterKey", "Position_Number",
	"I9_Sent", "SSN_Sent", "Offer_Sent", "Offer_Signed",
}

func exportRow(a assignment.Assignment) []interface{} {
	intOrBlank := func(i *int) interface{} {
		if i == nil {
			return ""
		}
		return *i
	}
	compensation, _ := a.Compensation.Float64()

	return []interface{}{
		a.ID, a.Version, a.StudentID, a.ASUrite, a.FirstName, a.LastName, a.Email, a.EducationLevel,
		a.Position, intOrBlank(a.WeeklyHours), a.FultonFellow, a.Subject, intOrBlank(a.CatalogNum),
		a.ClassSession, a.ClassNum, a.Term, a.InstructorName(), a.Location, a.Campus, a.AcadCareer,
		compensation, a.CostCenterKey, a.PositionNumber, a.I9Sent, a.SSNSent, a.OfferSent, a.OfferSigned,
	}
}

// WriteWorkbook writes the assignments as an XLSX workbook for payroll review.
func WriteWorkbook(w io.Writer, asgs []assignment.Assignment) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err = f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err = f.SetCellStyle(ExportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, a := range asgs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := exportRow(a)
		if err = f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing assignment %d", a.ID)
		}
	}
	if err = f.SetPanes(ExportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return errors.Wrap(err, "freezing header")
	}

	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
