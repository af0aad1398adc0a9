// Package report renders day exports: an XLSX workbook of the raw readings
// and a one-page PDF of the day summary.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	readingsSheet = "leituras"
	summarySheet  = "resumo"
)

var readingColumns = []struct {
	title string
	field domain.Field
}{
	{"Temperatura (°C)", domain.FieldTemperature},
	{"Temperatura BMP (°C)", domain.FieldTemperatureBMP},
	{"Umidade (%)", domain.FieldHumidity},
	{"Pressão (hPa)", domain.FieldPressure},
	{"Chuva (mm)", domain.FieldRainMM},
	{"Pulsos de chuva", domain.FieldRainCount},
	{"Vento (m/s)", domain.FieldWindMS},
}

// DayWorkbook builds an XLSX workbook with one row per reading, timestamps in
// loc, and a summary sheet.
func DayWorkbook(summary domain.DaySummary, readings []domain.Reading, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return nil, fmt.Errorf("rename readings sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	header := []any{"Horário", "Dispositivo"}
	for _, c := range readingColumns {
		header = append(header, c.title)
	}
	if err := setRow(f, readingsSheet, 1, header...); err != nil {
		return nil, err
	}

	for i, r := range readings {
		values := []any{r.Timestamp.In(loc).Format("2006-01-02 15:04:05"), r.DeviceID}
		for _, c := range readingColumns {
			values = append(values, cellValue(r.Get(c.field)))
		}
		if err := setRow(f, readingsSheet, i+2, values...); err != nil {
			return nil, err
		}
	}

	rows := []struct {
		label string
		value any
	}{
		{"Dia", summary.Day},
		{"Dia da semana", summary.Weekday},
		{"Nascer do sol", summary.Sunrise},
		{"Pôr do sol", summary.Sunset},
		{"Leituras", summary.Stats.Count},
		{"Temperatura mínima", cellValue(summary.Stats.TMin)},
		{"Temperatura máxima", cellValue(summary.Stats.TMax)},
		{"Umidade média", cellValue(summary.Stats.HAvg)},
		{"Pressão média", cellValue(summary.Stats.PAvg)},
		{"Chuva acumulada", cellValue(summary.Stats.RainSum)},
		{"Vento médio", cellValue(summary.Stats.WindAvg)},
		{"Vento máximo", cellValue(summary.Stats.WindMax)},
	}
	for i, r := range rows {
		if err := setRow(f, summarySheet, i+1, r.label, r.value); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// DaySummaryPDF renders the day summary and the hourly forecast comparison.
func DaySummaryPDF(station string, summary domain.DaySummary, rows []domain.CompareRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(fmt.Sprintf("%s - %s (%s)", station, summary.Day, summary.Weekday)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("Nascer do sol: %s    Pôr do sol: %s", summary.Sunrise, summary.Sunset),
		fmt.Sprintf("Leituras: %d", summary.Stats.Count),
		fmt.Sprintf("Temperatura: mín %s  máx %s", format(summary.Stats.TMin, "%.1f °C"), format(summary.Stats.TMax, "%.1f °C")),
		fmt.Sprintf("Umidade média: %s", format(summary.Stats.HAvg, "%.0f %%")),
		fmt.Sprintf("Pressão média: %s", format(summary.Stats.PAvg, "%.1f hPa")),
		fmt.Sprintf("Chuva acumulada: %s", format(summary.Stats.RainSum, "%.1f mm")),
		fmt.Sprintf("Vento: médio %s  máximo %s", format(summary.Stats.WindAvg, "%.1f m/s"), format(summary.Stats.WindMax, "%.1f m/s")),
	}
	for _, l := range lines {
		pdf.Cell(0, 6, tr(l))
		pdf.Ln(6)
	}

	if len(rows) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Hora", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, tr("Previsão (°C)"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, tr("Medido (°C)"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, r := range rows {
			pdf.CellFormat(30, 5, r.Label, "1", 0, "C", false, 0, "")
			pdf.CellFormat(45, 5, tr(format(r.Forecast, "%.1f")), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 5, tr(format(r.Measured, "%.1f")), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// setRow writes values from column A of row. Nil values leave the cell blank.
func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, val := range values {
		if val == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, row, err)
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func cellValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func format(v *float64, layout string) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf(layout, *v)
}
