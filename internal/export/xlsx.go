package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// SheetName is the worksheet holding the seat manifest.
const SheetName = "Seats"

var manifestHeader = []interface{}{"Seat", "QR URL", "Active", "Scans"}

// XLSX writes a manifest of the code: one row per seat, or one row for a
// single code with an empty seat cell.
func XLSX(code model.ProvisionedCode) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	rows := [][]interface{}{manifestHeader}
	if code.QRType == model.QRTypeScreen {
		for _, s := range code.Seats {
			rows = append(rows, []interface{}{s.Seat, s.QRCodeURL, s.IsActive, s.ScanCount})
		}
	} else {
		url := ""
		if code.QRCodeURL != nil {
			url = *code.QRCodeURL
		}
		rows = append(rows, []interface{}{"", url, true, code.ScanCount})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(SheetName, "B", "B", 60); err != nil {
		return nil, err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
