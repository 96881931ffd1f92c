// Package render 把图表模型翻译成 go-echarts 页面。模型本身与渲染器
// 解耦：这里只消费 Panel 契约，不回头读取任何原始输入。
package render

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"backchart/internal/chart"
	"backchart/internal/market"
)

const timeLabelLayout = "01-02 15:04"

// WritePage 渲染完整页面：主面板一张 K 线图（叠加 main 指标与标记），
// 每个副面板一张独立定轴的折线图。模型没有面板时输出"无数据"占位页。
func WritePage(w io.Writer, title string, model chart.Model) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	rendered := 0
	for _, panel := range model.Panels {
		switch panel.Kind {
		case chart.PanelPrimary:
			kline, err := primaryChart(title, panel)
			if err != nil {
				return err
			}
			page.AddCharts(kline)
			rendered++
		case chart.PanelSecondary:
			page.AddCharts(secondaryChart(panel))
			rendered++
		}
	}
	if rendered == 0 {
		_, err := io.WriteString(w, emptyPage(title))
		return err
	}
	return page.Render(w)
}

func primaryChart(title string, panel chart.Panel) (*charts.Kline, error) {
	if len(panel.Series) == 0 || panel.Series[0].Role != chart.RoleCandlestick {
		return nil, chart.ErrPrimaryNotCandlestick
	}
	candles := panel.Series[0].Candles
	labels := make([]string, 0, len(candles))
	klineData := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		labels = append(labels, formatLabel(c.OpenTime))
		klineData = append(klineData, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithYAxisOpts(opts.YAxis{Min: panel.ValueAxis.Min, Max: panel.ValueAxis.Max}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "520px"}),
	)
	kline.SetXAxis(labels).AddSeries("price", klineData)

	for _, s := range panel.Series[1:] {
		if s.Indicator == nil {
			continue
		}
		kline.Overlap(indicatorLine(labels, candles, *s.Indicator))
	}
	if len(panel.Markers) > 0 {
		kline.Overlap(markerScatter(labels, candles, panel.Markers))
	}
	return kline, nil
}

// indicatorLine 把对齐序列铺到与 K 线相同的类目轴上；没有对应点的
// 类目留空，echarts 原生支持折线断点。
func indicatorLine(labels []string, candles []market.Candle, s chart.AlignedSeries) *charts.Line {
	byTS := make(map[int64]float64, len(s.Points))
	for _, p := range s.Points {
		byTS[p.Timestamp] = p.Value
	}
	data := make([]opts.LineData, 0, len(candles))
	for _, c := range candles {
		if v, ok := byTS[c.OpenTime]; ok {
			data = append(data, opts.LineData{Value: v})
		} else {
			data = append(data, opts.LineData{Value: nil})
		}
	}
	line := charts.NewLine()
	line.SetXAxis(labels).AddSeries(s.Name, data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color, Width: float32(s.StrokeWidth)}),
	)
	return line
}

// markerScatter 标记不保证落在 K 线时间轴上，类目轴只能按标签定位，
// 因此渲染时吸附到最近一根 K 线；这是纯展示层的近似，模型里的
// 时间戳保持原值。
func markerScatter(labels []string, candles []market.Candle, markers []chart.Signal) *charts.Scatter {
	var entries, exits []opts.ScatterData
	for _, m := range markers {
		idx := nearestCandleIndex(candles, m.Timestamp)
		if idx < 0 {
			continue
		}
		point := opts.ScatterData{
			Value:      []any{labels[idx], m.Price},
			Symbol:     "triangle",
			SymbolSize: 14,
		}
		if m.Kind == chart.SignalExit {
			point.Symbol = "diamond"
			point.SymbolSize = 12
			exits = append(exits, point)
		} else {
			entries = append(entries, point)
		}
	}
	scatter := charts.NewScatter()
	scatter.SetXAxis(labels)
	scatter.AddSeries("entry", entries, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2ecc71"}))
	scatter.AddSeries("exit", exits, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#e74c3c"}))
	return scatter
}

func secondaryChart(panel chart.Panel) *charts.Line {
	line := charts.NewLine()
	name := "indicator"
	if len(panel.Series) > 0 {
		name = panel.Series[0].Name
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name}),
		charts.WithYAxisOpts(opts.YAxis{Min: panel.ValueAxis.Min, Max: panel.ValueAxis.Max}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "220px"}),
	)
	if len(panel.Series) == 0 || panel.Series[0].Indicator == nil {
		return line
	}
	s := panel.Series[0].Indicator
	labels := make([]string, 0, len(s.Points))
	data := make([]opts.LineData, 0, len(s.Points))
	for _, p := range s.Points {
		labels = append(labels, formatLabel(p.Timestamp))
		data = append(data, opts.LineData{Value: p.Value})
	}
	line.SetXAxis(labels).AddSeries(s.Name, data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color, Width: float32(s.StrokeWidth)}),
	)
	return line
}

func nearestCandleIndex(candles []market.Candle, ts int64) int {
	best, bestDiff := -1, int64(-1)
	for i, c := range candles {
		diff := c.OpenTime - ts
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

func formatLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timeLabelLayout)
}

func emptyPage(title string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head>
<body><p style="font-family:sans-serif;color:#888;margin:4em;text-align:center">%s: no data</p></body></html>`, title, title)
}
