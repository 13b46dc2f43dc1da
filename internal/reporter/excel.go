// Package reporter writes the Excel workbook summarizing a test run.
package reporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"sse-perftool/bench/internal/tester"
)

// ExcelReporter generates the Excel report from a completed run.
type ExcelReporter struct {
	file *excelize.File
}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{
		file: excelize.NewFile(),
	}
}

// GenerateReport writes the workbook: overview, percentile statistics,
// time series and per-request detail sheets.
func (r *ExcelReporter) GenerateReport(report *tester.RunReport, outputPath string) error {
	r.file.DeleteSheet("Sheet1")

	if err := r.createOverviewSheet(report); err != nil {
		return fmt.Errorf("failed to create overview sheet: %w", err)
	}
	if err := r.createPercentileSheet(report); err != nil {
		return fmt.Errorf("failed to create percentile sheet: %w", err)
	}
	if err := r.createTimeSeriesSheet(report); err != nil {
		return fmt.Errorf("failed to create time series sheet: %w", err)
	}
	if err := r.createDetailSheet(report); err != nil {
		return fmt.Errorf("failed to create detail sheet: %w", err)
	}

	if err := r.file.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func (r *ExcelReporter) headerStyle() int {
	style, _ := r.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	return style
}

// createOverviewSheet summarizes the run configuration and outcome.
func (r *ExcelReporter) createOverviewSheet(report *tester.RunReport) error {
	sheetName := "测试概览"
	index, err := r.file.NewSheet(sheetName)
	if err != nil {
		return err
	}
	r.file.SetActiveSheet(index)

	r.file.SetColWidth(sheetName, "A", "A", 24)
	r.file.SetColWidth(sheetName, "B", "B", 32)

	success := report.SuccessCount()
	total := len(report.Results)
	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100.0
	}

	totalChunks, totalTokens := 0, 0
	var totalResponse, totalTTFB, totalTTFT float64
	for _, res := range report.Results {
		totalChunks += res.ChunkCount
		totalTokens += res.TokenCount
		totalResponse += res.TotalResponseTime
		if res.Success() {
			totalTTFB += res.TTFB
			totalTTFT += res.TTFT
		}
	}

	rows := [][2]any{
		{"目标", fmt.Sprintf("%s:%d", report.Host, report.Port)},
		{"模型", report.ModelName},
		{"配置线程数", report.ThreadCount},
		{"配置执行时间(秒)", report.DurationSec},
		{"实际执行时间(秒)", fmt.Sprintf("%.2f", report.ActualDuration())},
		{"请求次数", total},
		{"成功", success},
		{"失败", total - success},
		{"成功率(%)", fmt.Sprintf("%.2f", successRate)},
		{"总数据块数", totalChunks},
		{"总Token数", totalTokens},
		{"总响应时间(ms)", fmt.Sprintf("%.2f", totalResponse)},
	}
	if success > 0 {
		rows = append(rows,
			[2]any{"平均响应时间(ms)", fmt.Sprintf("%.2f", totalResponse/float64(success))},
			[2]any{"平均TTFB(ms)", fmt.Sprintf("%.2f", totalTTFB/float64(success))},
			[2]any{"平均TTFT(ms)", fmt.Sprintf("%.2f", totalTTFT/float64(success))},
		)
	}

	r.file.SetCellValue(sheetName, "A1", "项目")
	r.file.SetCellValue(sheetName, "B1", "值")
	r.file.SetCellStyle(sheetName, "A1", "B1", r.headerStyle())

	for i, row := range rows {
		r.file.SetCellValue(sheetName, fmt.Sprintf("A%d", i+2), row[0])
		r.file.SetCellValue(sheetName, fmt.Sprintf("B%d", i+2), row[1])
	}
	return nil
}

// createPercentileSheet writes mean/min/max/P90/P95/P99 per metric.
func (r *ExcelReporter) createPercentileSheet(report *tester.RunReport) error {
	sheetName := "百分位统计"
	if _, err := r.file.NewSheet(sheetName); err != nil {
		return err
	}

	r.file.SetColWidth(sheetName, "A", "A", 24)
	r.file.SetColWidth(sheetName, "B", "G", 14)

	headers := []string{"指标", "平均值", "最小值", "最大值", "P90", "P95", "P99"}
	for i, header := range headers {
		r.file.SetCellValue(sheetName, fmt.Sprintf("%c1", 'A'+i), header)
	}
	r.file.SetCellStyle(sheetName, "A1", fmt.Sprintf("%c1", 'A'+len(headers)-1), r.headerStyle())

	metrics := []struct {
		name  string
		stats tester.Stats
	}{
		{"首Token时间 TTFT(ms)", report.Stats.TTFT},
		{"每Token时间 TPOT(ms)", report.Stats.TPOT},
		{"首字节时间 TTFB(ms)", report.Stats.TTFB},
		{"吞吐量(tokens/s)", report.Stats.Throughput},
		{"总响应时间(ms)", report.Stats.ResponseTime},
	}

	for i, m := range metrics {
		row := i + 2
		r.file.SetCellValue(sheetName, fmt.Sprintf("A%d", row), m.name)
		r.file.SetCellValue(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("%.2f", m.stats.Mean))
		r.file.SetCellValue(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", m.stats.Min))
		r.file.SetCellValue(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", m.stats.Max))
		r.file.SetCellValue(sheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("%.2f", m.stats.P90))
		r.file.SetCellValue(sheetName, fmt.Sprintf("F%d", row), fmt.Sprintf("%.2f", m.stats.P95))
		r.file.SetCellValue(sheetName, fmt.Sprintf("G%d", row), fmt.Sprintf("%.2f", m.stats.P99))
	}
	return nil
}

// createTimeSeriesSheet writes one row per aggregator tick.
func (r *ExcelReporter) createTimeSeriesSheet(report *tester.RunReport) error {
	sheetName := "时间序列"
	if _, err := r.file.NewSheet(sheetName); err != nil {
		return err
	}

	r.file.SetColWidth(sheetName, "A", "J", 16)

	headers := []string{"时间", "活跃线程", "总线程", "数据块", "Token数",
		"平均响应时间(ms)", "TPOT(ms/token)", "Tokens/s", "成功率(%)", "请求数"}
	for i, header := range headers {
		r.file.SetCellValue(sheetName, fmt.Sprintf("%c1", 'A'+i), header)
	}
	r.file.SetCellStyle(sheetName, "A1", fmt.Sprintf("%c1", 'A'+len(headers)-1), r.headerStyle())

	for i, s := range report.TimeSeries {
		row := i + 2
		r.file.SetCellValue(sheetName, fmt.Sprintf("A%d", row), s.TimeStr)
		r.file.SetCellValue(sheetName, fmt.Sprintf("B%d", row), s.ActiveThreads)
		r.file.SetCellValue(sheetName, fmt.Sprintf("C%d", row), s.TotalThreads)
		r.file.SetCellValue(sheetName, fmt.Sprintf("D%d", row), s.TotalChunks)
		r.file.SetCellValue(sheetName, fmt.Sprintf("E%d", row), s.TotalTokens)
		r.file.SetCellValue(sheetName, fmt.Sprintf("F%d", row), fmt.Sprintf("%.2f", s.AvgResponseTime))
		r.file.SetCellValue(sheetName, fmt.Sprintf("G%d", row), fmt.Sprintf("%.2f", s.TPOT))
		r.file.SetCellValue(sheetName, fmt.Sprintf("H%d", row), fmt.Sprintf("%.2f", s.TokensPerSecond))
		r.file.SetCellValue(sheetName, fmt.Sprintf("I%d", row), fmt.Sprintf("%.2f", s.SuccessRate))
		r.file.SetCellValue(sheetName, fmt.Sprintf("J%d", row), s.TotalRequests)
	}
	return nil
}

// createDetailSheet writes one row per request.
func (r *ExcelReporter) createDetailSheet(report *tester.RunReport) error {
	sheetName := "请求明细"
	if _, err := r.file.NewSheet(sheetName); err != nil {
		return err
	}

	r.file.SetColWidth(sheetName, "A", "L", 16)

	headers := []string{"线程", "状态码", "TTFB(ms)", "TTFT(ms)", "TPOT(ms)",
		"流式时长(ms)", "吞吐量(tokens/s)", "总响应时间(ms)", "数据块", "Token数", "对话ID", "错误"}
	for i, header := range headers {
		r.file.SetCellValue(sheetName, fmt.Sprintf("%c1", 'A'+i), header)
	}
	r.file.SetCellStyle(sheetName, "A1", fmt.Sprintf("%c1", 'A'+len(headers)-1), r.headerStyle())

	for i, res := range report.Results {
		row := i + 2
		r.file.SetCellValue(sheetName, fmt.Sprintf("A%d", row), res.ThreadID)
		r.file.SetCellValue(sheetName, fmt.Sprintf("B%d", row), res.StatusCode)
		r.file.SetCellValue(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", res.TTFB))
		r.file.SetCellValue(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", res.TTFT))
		r.file.SetCellValue(sheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("%.2f", res.TPOT))
		r.file.SetCellValue(sheetName, fmt.Sprintf("F%d", row), fmt.Sprintf("%.2f", res.StreamingDuration))
		r.file.SetCellValue(sheetName, fmt.Sprintf("G%d", row), fmt.Sprintf("%.2f", res.Throughput))
		r.file.SetCellValue(sheetName, fmt.Sprintf("H%d", row), fmt.Sprintf("%.2f", res.TotalResponseTime))
		r.file.SetCellValue(sheetName, fmt.Sprintf("I%d", row), res.ChunkCount)
		r.file.SetCellValue(sheetName, fmt.Sprintf("J%d", row), res.TokenCount)
		r.file.SetCellValue(sheetName, fmt.Sprintf("K%d", row), res.ConversationID)
		r.file.SetCellValue(sheetName, fmt.Sprintf("L%d", row), res.Error)
	}
	return nil
}
