package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"HiLoBacktester/internal/model"
)

const (
	sheetData         = "Data"
	sheetOptimization = "Optimization"
	sheetPlots        = "Plots"
	maxColWidth       = 60
)

var dataHeader = []string{
	"Date", "High", "Low", "Adj Close", "Avg Hi", "Avg Lo", "Signal", "Position", "Cost", "Cost Pct",
	"Daily Return", "Strategy Return", "Net Strategy Return", "Cumulative Return", "Cumulative Return (net)",
	"HiLo Period",
}

var optimizationHeader = []string{"HiLo", "Cumulative Return %", "Cumulative Return (net) %"}

// Run bundles the data products handed to reporting. Reporting only reads them.
type Run struct {
	Final         *model.StrategyResult
	Sweep         *model.Sweep
	Benchmark     []float64 // aligned to Final.Rows; nil when unavailable
	BenchmarkName string
}

// Writer renders xlsx reports into Dir.
type Writer struct {
	Dir            string
	InitialCapital float64
}

// NewWriter creates a report writer for dir.
func NewWriter(dir string, initialCapital float64) *Writer {
	if initialCapital <= 0 {
		initialCapital = 10000
	}
	return &Writer{Dir: dir, InitialCapital: initialCapital}
}

// Path returns the report file for a run.
func (w *Writer) Path(run *Run) string {
	first, last := "", ""
	if n := len(run.Final.Rows); n > 0 {
		first = run.Final.Rows[0].Date.Format(time.DateOnly)
		last = run.Final.Rows[n-1].Date.Format(time.DateOnly)
	}
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s_%s_report.xlsx", run.Final.Symbol, first, last))
}

// Write renders the workbook and returns its path.
func (w *Writer) Write(run *Run) (string, error) {
	if run == nil || run.Final == nil || run.Sweep == nil {
		return "", fmt.Errorf("report: incomplete run")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", sheetData); err != nil {
		return "", err
	}
	if err := w.writeData(f, run, bold); err != nil {
		return "", fmt.Errorf("data sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetOptimization); err != nil {
		return "", err
	}
	if err := w.writeOptimization(f, run, bold); err != nil {
		return "", fmt.Errorf("optimization sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetPlots); err != nil {
		return "", err
	}
	if err := w.writePlots(f, run, bold); err != nil {
		return "", fmt.Errorf("plots sheet: %w", err)
	}
	for _, sheet := range []string{sheetData, sheetOptimization, sheetPlots} {
		if err := freezeHeader(f, sheet); err != nil {
			return "", err
		}
	}
	f.SetActiveSheet(0)

	path := w.Path(run)
	log.Info().Str("path", path).Msg("saving report")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func (w *Writer) writeData(f *excelize.File, run *Run, bold int) error {
	widths := newWidths()
	if err := writeRow(f, sheetData, 1, toCells(dataHeader), widths); err != nil {
		return err
	}
	for i, r := range run.Final.Rows {
		row := []interface{}{
			r.Date.Format(time.DateOnly), num(r.High), num(r.Low), num(r.AdjClose),
			num(r.AvgHigh), num(r.AvgLow), r.Signal.String(), r.Position.String(),
			num(r.Cost), num(r.CostPct), num(r.DailyReturn), num(r.StrategyReturn),
			num(r.NetStrategyReturn), num(r.CumulativeReturnGross), num(r.CumulativeReturnNet),
			run.Final.Period,
		}
		if err := writeRow(f, sheetData, i+2, row, widths); err != nil {
			return err
		}
	}

	stats := ComputeStats(run.Final, run.Sweep)
	costCol := len(dataHeader) + 2
	summary := [][2]interface{}{
		{"Total Cost", stats.TotalCost.Round(2).InexactFloat64()},
		{"Trades", stats.Trades},
	}
	for k, kv := range summary {
		head, _ := excelize.CoordinatesToCellName(costCol+k, 1)
		val, _ := excelize.CoordinatesToCellName(costCol+k, 2)
		if err := f.SetCellValue(sheetData, head, kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetData, val, kv[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetData, head, head, bold); err != nil {
			return err
		}
		widths.observe(costCol+k, kv[0])
	}
	if err := boldHeader(f, sheetData, len(dataHeader), bold); err != nil {
		return err
	}
	return widths.apply(f, sheetData)
}

func (w *Writer) writeOptimization(f *excelize.File, run *Run, bold int) error {
	widths := newWidths()
	if err := writeRow(f, sheetOptimization, 1, toCells(optimizationHeader), widths); err != nil {
		return err
	}
	rows := run.Sweep.Rows
	for i, r := range rows {
		row := []interface{}{r.Period, num(r.CumulativeReturnGross), num(r.CumulativeReturnNet)}
		if err := writeRow(f, sheetOptimization, i+2, row, widths); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		err := f.SetConditionalFormat(sheetOptimization, fmt.Sprintf("C2:C%d", len(rows)+1),
			[]excelize.ConditionalFormatOptions{{
				Type:     "3_color_scale",
				Criteria: "=",
				MinType:  "min",
				MidType:  "num",
				MidValue: "1",
				MaxType:  "max",
				MinColor: "#FF0000",
				MidColor: "#FFFFFF",
				MaxColor: "#00FF00",
			}})
		if err != nil {
			return fmt.Errorf("color scale: %w", err)
		}
	}

	positive, negative := countNets(rows)
	col := len(optimizationHeader) + 1
	extra := []interface{}{"% Positive", "% Negative"}
	for k, head := range extra {
		hc, _ := excelize.CoordinatesToCellName(col+k, 1)
		if err := f.SetCellValue(sheetOptimization, hc, head); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetOptimization, hc, hc, bold); err != nil {
			return err
		}
		widths.observe(col+k, head)
	}
	pc, _ := excelize.CoordinatesToCellName(col, 2)
	nc, _ := excelize.CoordinatesToCellName(col+1, 2)
	if err := f.SetCellValue(sheetOptimization, pc, positive); err != nil {
		return err
	}
	if err := f.SetCellValue(sheetOptimization, nc, negative); err != nil {
		return err
	}

	if len(run.Sweep.Skipped) > 0 {
		skipCol := col + 3
		if err := writeRowAt(f, sheetOptimization, skipCol, 1, []interface{}{"Skipped HiLo", "Reason"}, widths); err != nil {
			return err
		}
		for i, s := range run.Sweep.Skipped {
			if err := writeRowAt(f, sheetOptimization, skipCol, i+2, []interface{}{s.Period, s.Reason}, widths); err != nil {
				return err
			}
		}
	}
	if err := boldHeader(f, sheetOptimization, len(optimizationHeader), bold); err != nil {
		return err
	}
	return widths.apply(f, sheetOptimization)
}

// writePlots lays out the chart source tables and the native charts that read them.
func (w *Writer) writePlots(f *excelize.File, run *Run, bold int) error {
	widths := newWidths()
	final := run.Final
	capital := w.InitialCapital

	growthHeader := []interface{}{"Date", "Strategy Gross", "Strategy Net", "Buy & Hold", "Gross Return %", "Net Return %"}
	hasBenchmark := len(run.Benchmark) == len(final.Rows) && len(run.Benchmark) > 0
	if hasBenchmark {
		growthHeader = append(growthHeader, benchmarkLabel(run.BenchmarkName))
	}
	if err := writeRow(f, sheetPlots, 1, growthHeader, widths); err != nil {
		return err
	}
	firstClose := math.NaN()
	if len(final.Rows) > 0 {
		firstClose = final.Rows[0].AdjClose
	}
	firstBench := math.NaN()
	for _, v := range run.Benchmark {
		if !math.IsNaN(v) {
			firstBench = v
			break
		}
	}
	for i, r := range final.Rows {
		row := []interface{}{
			r.Date.Format(time.DateOnly),
			num(r.CumulativeReturnGross * capital),
			num(r.CumulativeReturnNet * capital),
			num(r.AdjClose / firstClose * capital),
			num(r.CumulativeReturnGross * 100),
			num(r.CumulativeReturnNet * 100),
		}
		if hasBenchmark {
			row = append(row, num(run.Benchmark[i]/firstBench*capital))
		}
		if err := writeRow(f, sheetPlots, i+2, row, widths); err != nil {
			return err
		}
	}

	optCol := len(growthHeader) + 2
	if err := writeRowAt(f, sheetPlots, optCol, 1, []interface{}{"HiLo", "Net Return %", "Fee Drag %"}, widths); err != nil {
		return err
	}
	for i, r := range run.Sweep.Rows {
		grossPct := (r.CumulativeReturnGross - 1) * 100
		netPct := (r.CumulativeReturnNet - 1) * 100
		if err := writeRowAt(f, sheetPlots, optCol, i+2, []interface{}{r.Period, num(netPct), num(grossPct - netPct)}, widths); err != nil {
			return err
		}
	}
	if err := boldHeader(f, sheetPlots, optCol+2, bold); err != nil {
		return err
	}
	if err := widths.apply(f, sheetPlots); err != nil {
		return err
	}

	chartCol, _ := excelize.ColumnNumberToName(optCol + 4)
	symbol := final.Symbol
	period := final.Period

	if n := len(run.Sweep.Rows); n > 0 {
		cats := colRange(optCol, 2, n+1)
		chart := &excelize.Chart{
			Type: excelize.ColStacked,
			Series: []excelize.ChartSeries{
				{Name: cellRef(optCol+1, 1), Categories: cats, Values: colRange(optCol+1, 2, n+1)},
				{Name: cellRef(optCol+2, 1), Categories: cats, Values: colRange(optCol+2, 2, n+1)},
			},
			Title:     []excelize.RichTextRun{{Text: fmt.Sprintf("%s HiLo Optimization", symbol)}},
			Legend:    excelize.ChartLegend{Position: "bottom"},
			Dimension: excelize.ChartDimension{Width: 960, Height: 520},
			XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "HiLo Period"}}},
			YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Cumulative Return (%)"}}},
		}
		if err := f.AddChart(sheetPlots, chartCol+"1", chart); err != nil {
			return fmt.Errorf("optimization chart: %w", err)
		}
	}

	if n := len(final.Rows); n > 0 {
		dates := colRange(1, 2, n+1)
		growth := []excelize.ChartSeries{
			{Name: cellRef(2, 1), Categories: dates, Values: colRange(2, 2, n+1)},
			{Name: cellRef(3, 1), Categories: dates, Values: colRange(3, 2, n+1)},
			{Name: cellRef(4, 1), Categories: dates, Values: colRange(4, 2, n+1)},
		}
		if hasBenchmark {
			growth = append(growth, excelize.ChartSeries{Name: cellRef(7, 1), Categories: dates, Values: colRange(7, 2, n+1)})
		}
		comparison := &excelize.Chart{
			Type:      excelize.Line,
			Series:    growth,
			Title:     []excelize.RichTextRun{{Text: fmt.Sprintf("%s Strategy vs Benchmark (Growth of $%.0f, HiLo=%d)", symbol, capital, period)}},
			Legend:    excelize.ChartLegend{Position: "bottom"},
			Dimension: excelize.ChartDimension{Width: 960, Height: 520},
			XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Date"}}},
			YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: fmt.Sprintf("Value of $%.0f Investment", capital)}}},
		}
		if err := f.AddChart(sheetPlots, chartCol+"28", comparison); err != nil {
			return fmt.Errorf("comparison chart: %w", err)
		}

		returns := &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{
				{Name: cellRef(5, 1), Categories: dates, Values: colRange(5, 2, n+1)},
				{Name: cellRef(6, 1), Categories: dates, Values: colRange(6, 2, n+1)},
			},
			Title:     []excelize.RichTextRun{{Text: fmt.Sprintf("%s Returns (HiLo=%d)", symbol, period)}},
			Legend:    excelize.ChartLegend{Position: "bottom"},
			Dimension: excelize.ChartDimension{Width: 960, Height: 520},
			XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Date"}}},
			YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Cumulative Return (%)"}}},
		}
		if err := f.AddChart(sheetPlots, chartCol+"55", returns); err != nil {
			return fmt.Errorf("returns chart: %w", err)
		}
	}
	return nil
}

func benchmarkLabel(name string) string {
	if name == "" {
		return "Benchmark"
	}
	return name
}

// num maps values Excel cannot store to blank cells.
func num(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func cellRef(col, row int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("%s!$%s$%d", sheetPlots, name, row)
}

func colRange(col, from, to int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("%s!$%s$%d:$%s$%d", sheetPlots, name, from, name, to)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}, widths *colWidths) error {
	return writeRowAt(f, sheet, 1, row, values, widths)
}

func writeRowAt(f *excelize.File, sheet string, col, row int, values []interface{}, widths *colWidths) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return err
	}
	for k, v := range values {
		widths.observe(col+k, v)
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// colWidths tracks the widest rendered value per column.
type colWidths struct {
	max map[int]int
}

func newWidths() *colWidths { return &colWidths{max: map[int]int{}} }

func (c *colWidths) observe(col int, v interface{}) {
	if v == nil {
		return
	}
	var n int
	switch x := v.(type) {
	case float64:
		n = len(fmt.Sprintf("%.6g", x))
	default:
		n = len(fmt.Sprint(x))
	}
	if n > c.max[col] {
		c.max[col] = n
	}
}

func (c *colWidths) apply(f *excelize.File, sheet string) error {
	for col, n := range c.max {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(min(n+2, maxColWidth))); err != nil {
			return err
		}
	}
	return nil
}
