package exporter

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"sse-perftool/bench/internal/tester"
)

// exportHTML renders the interactive HTML report.
func (e *Exporter) exportHTML(report *tester.RunReport, baseName string) error {
	filename := filepath.Join(e.outputDir, baseName+".html")
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return err
	}

	data := prepareReportData(report)
	if err := tmpl.Execute(file, data); err != nil {
		return err
	}

	fmt.Printf("✓ HTML 报告已导出: %s\n", filename)
	return nil
}

// metricRow is one line of the percentile table.
type metricRow struct {
	Name  string
	Unit  string
	Stats tester.Stats
}

// reportData feeds the HTML template.
type reportData struct {
	Title         string
	Target        string
	ModelName     string
	ThreadCount   int
	DurationSec   int
	ActualSec     string
	GeneratedAt   string
	TotalRequests int
	SuccessCount  int
	FailCount     int
	SuccessRate   string
	AvgTTFT       string
	AvgTPOT       string
	TotalTokens   int

	Metrics []metricRow

	// JSON-encoded arrays for the charts.
	RequestLabels   template.JS
	RequestTTFT     template.JS
	RequestResponse template.JS
	SeriesLabels    template.JS
	SeriesTokensPS  template.JS
	SeriesAvgResp   template.JS
	SeriesSuccess   template.JS
	SeriesThreads   template.JS
}

func jsArray(v interface{}) template.JS {
	data, err := json.Marshal(v)
	if err != nil {
		return template.JS("[]")
	}
	return template.JS(data)
}

func prepareReportData(report *tester.RunReport) *reportData {
	success := report.SuccessCount()
	total := len(report.Results)
	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100.0
	}

	totalTokens := 0
	requestLabels := make([]string, 0, total)
	requestTTFT := make([]float64, 0, total)
	requestResponse := make([]float64, 0, total)
	for i, res := range report.Results {
		totalTokens += res.TokenCount
		requestLabels = append(requestLabels, fmt.Sprintf("#%d", i+1))
		requestTTFT = append(requestTTFT, res.TTFT)
		requestResponse = append(requestResponse, res.TotalResponseTime)
	}

	seriesLabels := make([]string, 0, len(report.TimeSeries))
	seriesTokensPS := make([]float64, 0, len(report.TimeSeries))
	seriesAvgResp := make([]float64, 0, len(report.TimeSeries))
	seriesSuccess := make([]float64, 0, len(report.TimeSeries))
	seriesThreads := make([]int, 0, len(report.TimeSeries))
	for _, s := range report.TimeSeries {
		seriesLabels = append(seriesLabels, s.TimeStr)
		seriesTokensPS = append(seriesTokensPS, s.TokensPerSecond)
		seriesAvgResp = append(seriesAvgResp, s.AvgResponseTime)
		seriesSuccess = append(seriesSuccess, s.SuccessRate)
		seriesThreads = append(seriesThreads, s.ActiveThreads)
	}

	target := fmt.Sprintf("%s:%d", report.Host, report.Port)
	title := "SSE 流式输出性能测试报告"
	if report.ModelName != "" {
		title = fmt.Sprintf("%s - %s", title, report.ModelName)
	}

	return &reportData{
		Title:         title,
		Target:        target,
		ModelName:     report.ModelName,
		ThreadCount:   report.ThreadCount,
		DurationSec:   report.DurationSec,
		ActualSec:     fmt.Sprintf("%.2f", report.ActualDuration()),
		GeneratedAt:   report.GeneratedAt.Format("2006-01-02 15:04:05"),
		TotalRequests: total,
		SuccessCount:  success,
		FailCount:     total - success,
		SuccessRate:   fmt.Sprintf("%.2f", successRate),
		AvgTTFT:       fmt.Sprintf("%.2f", report.Stats.TTFT.Mean),
		AvgTPOT:       fmt.Sprintf("%.2f", report.Stats.TPOT.Mean),
		TotalTokens:   totalTokens,
		Metrics: []metricRow{
			{Name: "首Token时间 TTFT", Unit: "ms", Stats: report.Stats.TTFT},
			{Name: "每Token时间 TPOT", Unit: "ms", Stats: report.Stats.TPOT},
			{Name: "首字节时间 TTFB", Unit: "ms", Stats: report.Stats.TTFB},
			{Name: "吞吐量", Unit: "tokens/s", Stats: report.Stats.Throughput},
			{Name: "总响应时间", Unit: "ms", Stats: report.Stats.ResponseTime},
		},
		RequestLabels:   jsArray(requestLabels),
		RequestTTFT:     jsArray(requestTTFT),
		RequestResponse: jsArray(requestResponse),
		SeriesLabels:    jsArray(seriesLabels),
		SeriesTokensPS:  jsArray(seriesTokensPS),
		SeriesAvgResp:   jsArray(seriesAvgResp),
		SeriesSuccess:   jsArray(seriesSuccess),
		SeriesThreads:   jsArray(seriesThreads),
	}
}

const reportTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"></script>
<style>
  body { font-family: "Helvetica Neue", Arial, "PingFang SC", "Microsoft YaHei", sans-serif;
         margin: 0; background: #f5f6fa; color: #2f3542; }
  .container { max-width: 1200px; margin: 0 auto; padding: 24px; }
  h1 { font-size: 24px; margin-bottom: 4px; }
  .meta { color: #747d8c; font-size: 13px; margin-bottom: 24px; }
  .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 14px; margin-bottom: 28px; }
  .card { background: #fff; border-radius: 8px; padding: 16px; box-shadow: 0 1px 4px rgba(0,0,0,0.08); }
  .card .label { font-size: 12px; color: #747d8c; }
  .card .value { font-size: 22px; font-weight: 600; margin-top: 6px; }
  table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 8px;
          overflow: hidden; box-shadow: 0 1px 4px rgba(0,0,0,0.08); margin-bottom: 28px; }
  th { background: #4472C4; color: #fff; padding: 10px 12px; text-align: right; font-size: 13px; }
  th:first-child, td:first-child { text-align: left; }
  td { padding: 9px 12px; text-align: right; font-size: 13px; border-top: 1px solid #f0f0f0; }
  h2 { font-size: 18px; margin: 28px 0 14px; }
  .charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 18px; }
  .chart-box { background: #fff; border-radius: 8px; padding: 16px; box-shadow: 0 1px 4px rgba(0,0,0,0.08); }
  .chart-box h3 { font-size: 14px; margin: 0 0 10px; color: #57606f; }
</style>
</head>
<body>
<div class="container">
  <h1>{{.Title}}</h1>
  <div class="meta">目标: {{.Target}} | 线程数: {{.ThreadCount}}{{if .DurationSec}} | 配置执行时间: {{.DurationSec}}秒{{end}} | 实际执行时间: {{.ActualSec}}秒 | 生成时间: {{.GeneratedAt}}</div>

  <div class="cards">
    <div class="card"><div class="label">请求次数</div><div class="value">{{.TotalRequests}}</div></div>
    <div class="card"><div class="label">成功 / 失败</div><div class="value">{{.SuccessCount}} / {{.FailCount}}</div></div>
    <div class="card"><div class="label">成功率</div><div class="value">{{.SuccessRate}}%</div></div>
    <div class="card"><div class="label">平均TTFT</div><div class="value">{{.AvgTTFT}} ms</div></div>
    <div class="card"><div class="label">平均TPOT</div><div class="value">{{.AvgTPOT}} ms</div></div>
    <div class="card"><div class="label">总Token数</div><div class="value">{{.TotalTokens}}</div></div>
  </div>

  <h2>百分位统计（成功请求）</h2>
  <table>
    <tr><th>指标</th><th>单位</th><th>平均值</th><th>最小值</th><th>最大值</th><th>P90</th><th>P95</th><th>P99</th></tr>
    {{range .Metrics}}
    <tr>
      <td>{{.Name}}</td><td>{{.Unit}}</td>
      <td>{{printf "%.2f" .Stats.Mean}}</td>
      <td>{{printf "%.2f" .Stats.Min}}</td>
      <td>{{printf "%.2f" .Stats.Max}}</td>
      <td>{{printf "%.2f" .Stats.P90}}</td>
      <td>{{printf "%.2f" .Stats.P95}}</td>
      <td>{{printf "%.2f" .Stats.P99}}</td>
    </tr>
    {{end}}
  </table>

  <h2>图表</h2>
  <div class="charts">
    <div class="chart-box"><h3>每请求 TTFT (ms)</h3><canvas id="ttftChart"></canvas></div>
    <div class="chart-box"><h3>每请求总响应时间 (ms)</h3><canvas id="responseChart"></canvas></div>
    <div class="chart-box"><h3>系统吞吐量 (Tokens/s)</h3><canvas id="tokensChart"></canvas></div>
    <div class="chart-box"><h3>系统平均响应时间 (ms)</h3><canvas id="avgRespChart"></canvas></div>
    <div class="chart-box"><h3>成功率 (%)</h3><canvas id="successChart"></canvas></div>
    <div class="chart-box"><h3>活跃线程数</h3><canvas id="threadsChart"></canvas></div>
  </div>
</div>

<script>
const lineOpts = { responsive: true, tension: 0.25, pointRadius: 2 };
function lineChart(id, labels, data, color) {
  new Chart(document.getElementById(id), {
    type: 'line',
    data: { labels: labels, datasets: [{ data: data, borderColor: color,
            backgroundColor: color + '22', fill: true }] },
    options: Object.assign({ plugins: { legend: { display: false } } }, lineOpts)
  });
}
lineChart('ttftChart', {{.RequestLabels}}, {{.RequestTTFT}}, '#4472C4');
lineChart('responseChart', {{.RequestLabels}}, {{.RequestResponse}}, '#e17055');
lineChart('tokensChart', {{.SeriesLabels}}, {{.SeriesTokensPS}}, '#00b894');
lineChart('avgRespChart', {{.SeriesLabels}}, {{.SeriesAvgResp}}, '#fdcb6e');
lineChart('successChart', {{.SeriesLabels}}, {{.SeriesSuccess}}, '#6c5ce7');
lineChart('threadsChart', {{.SeriesLabels}}, {{.SeriesThreads}}, '#0984e3');
</script>
</body>
</html>
`
