package convert

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxConverter serializes every sheet of a workbook as a record list,
// sheet name on its own line followed by each row.
type xlsxConverter struct{}

func (xlsxConverter) Convert(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("convert: open xlsx: %w", err)
	}
	defer f.Close()

	var out bytes.Buffer
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("convert: read sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&out, "[Sheet: %s]\n", sheet)
		out.WriteString(renderRecords(rows))
		out.WriteByte('\n')
	}
	return out.String(), nil
}
