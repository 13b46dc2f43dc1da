// Package exporter writes test results to CSV, JSON and HTML.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sse-perftool/bench/internal/tester"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatHTML ExportFormat = "html"
)

// Exporter handles exporting a run's results to various formats.
type Exporter struct {
	outputDir string
}

// NewExporter creates a new exporter instance.
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
	}
}

// Export writes the report in each requested format. File names carry a
// timestamp and the model name, when one was configured.
func (e *Exporter) Export(report *tester.RunReport, formats []ExportFormat) error {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := report.GeneratedAt.Format("20060102_150405")
	baseName := "sse_perf_" + timestamp
	if report.ModelName != "" {
		baseName = fmt.Sprintf("sse_perf_%s_%s", report.ModelName, timestamp)
	}

	for _, format := range formats {
		var err error
		switch format {
		case FormatCSV:
			err = e.exportCSV(report, baseName)
		case FormatJSON:
			err = e.exportJSON(report, baseName)
		case FormatHTML:
			err = e.exportHTML(report, baseName)
		default:
			return fmt.Errorf("unsupported export format: %s", format)
		}
		if err != nil {
			return fmt.Errorf("failed to export as %s: %w", format, err)
		}
	}

	return nil
}

// exportCSV writes one row per request.
func (e *Exporter) exportCSV(report *tester.RunReport, baseName string) error {
	filename := filepath.Join(e.outputDir, baseName+".csv")
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Thread",
		"Start Time",
		"Status Code",
		"Connect (ms)",
		"TTFB (ms)",
		"TTFT (ms)",
		"TPOT (ms)",
		"Streaming (ms)",
		"Throughput (tokens/s)",
		"Total (ms)",
		"Chunks",
		"Tokens",
		"Conversation ID",
		"Message ID",
		"Error",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, res := range report.Results {
		row := []string{
			fmt.Sprintf("%d", res.ThreadID),
			res.RequestStart.Format(time.RFC3339),
			fmt.Sprintf("%d", res.StatusCode),
			fmt.Sprintf("%.2f", res.ConnectTime),
			fmt.Sprintf("%.2f", res.TTFB),
			fmt.Sprintf("%.2f", res.TTFT),
			fmt.Sprintf("%.2f", res.TPOT),
			fmt.Sprintf("%.2f", res.StreamingDuration),
			fmt.Sprintf("%.2f", res.Throughput),
			fmt.Sprintf("%.2f", res.TotalResponseTime),
			fmt.Sprintf("%d", res.ChunkCount),
			fmt.Sprintf("%d", res.TokenCount),
			res.ConversationID,
			res.MessageID,
			res.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	fmt.Printf("✓ CSV 已导出: %s\n", filename)
	return nil
}

// exportJSON writes the full report payload.
func (e *Exporter) exportJSON(report *tester.RunReport, baseName string) error {
	filename := filepath.Join(e.outputDir, baseName+".json")

	success := report.SuccessCount()
	total := len(report.Results)
	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100.0
	}

	output := map[string]interface{}{
		"test_info": map[string]interface{}{
			"target":       fmt.Sprintf("%s:%d", report.Host, report.Port),
			"model_name":   report.ModelName,
			"thread_count": report.ThreadCount,
			"duration_sec": report.DurationSec,
			"generated_at": report.GeneratedAt.Format(time.RFC3339),
		},
		"summary": map[string]interface{}{
			"total_requests":      total,
			"successful_requests": success,
			"failed_requests":     total - success,
			"success_rate":        fmt.Sprintf("%.2f%%", successRate),
			"actual_duration_sec": report.ActualDuration(),
		},
		"percentiles": report.Stats,
		"time_series": report.TimeSeries,
		"results":     report.Results,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return err
	}

	fmt.Printf("✓ JSON 已导出: %s\n", filename)
	return nil
}
