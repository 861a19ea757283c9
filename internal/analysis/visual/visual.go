package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradeduel/internal/market"
	"tradeduel/internal/portfolio"
)

// Curve 是一个 agent 的资产曲线。
type Curve struct {
	Name    string
	Color   string
	History []portfolio.HistoryPoint
}

type Input struct {
	Title   string
	Candles []market.Candle
	Curves  []Curve
}

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorSMAFast       = "#3b82f6"
	colorSMASlow       = "#fbbf24"
	colorDIF           = "#22d3ee"
	colorDEA           = "#fb7185"

	chartWidthPx      = 1600
	klineHeightPx     = 560
	volumeHeightPx    = 220
	macdHeightPx      = 220
	portfolioHeightPx = 320
)

// RenderHTML 输出价格、均线、成交量、MACD 与各 agent 资产曲线的 HTML 页面。
func RenderHTML(in Input) ([]byte, error) {
	if len(in.Candles) == 0 {
		return nil, fmt.Errorf("visual: no candles to render")
	}
	title := in.Title
	if title == "" {
		title = "tradeduel"
	}
	xAxis := buildXAxis(in.Candles)

	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		buildPriceChart(title, xAxis, in.Candles),
		buildVolumeChart(xAxis, in.Candles),
		buildMACDChart(xAxis, in.Candles),
		buildPortfolioChart(xAxis, in.Candles, in.Curves),
	)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func initOpts(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func gridYAxis() opts.YAxis {
	return opts.YAxis{
		Scale:     opts.Bool(true),
		AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
		SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
	}
}

func buildPriceChart(title string, xAxis []string, candles []market.Candle) *charts.Kline {
	last := candles[len(candles)-1]
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(klineHeightPx)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      fmt.Sprintf("close %.2f | RSI %.1f | SMA20 %.2f | SMA50 %.2f", last.Close, last.RSI, last.SMA20, last.SMA50),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(gridYAxis()),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	data := make([]opts.KlineData, 0, len(candles))
	fast := make([]float64, len(candles))
	slow := make([]float64, len(candles))
	for i, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
		fast[i], slow[i] = c.SMA20, c.SMA50
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)

	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("SMA20", toLineData(fast), charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMAFast, Width: 2}))
	line.AddSeries("SMA50", toLineData(slow), charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMASlow, Width: 2}))
	kline.Overlap(line)
	return kline
}

func buildVolumeChart(xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(volumeHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(gridYAxis()),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{Value: c.Volume, ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)}}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func buildMACDChart(xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(macdHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "MACD", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(gridYAxis()),
	)
	hist := make([]opts.BarData, len(candles))
	dif := make([]float64, len(candles))
	dea := make([]float64, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.MACDDiff >= 0 {
			color = colorBull
		}
		hist[i] = opts.BarData{Value: c.MACDDiff, ItemStyle: &opts.ItemStyle{Color: color}}
		dif[i], dea[i] = c.MACD, c.MACDSignal
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("MACD Hist", hist)

	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	line.AddSeries("MACD", toLineData(dif), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDIF, Width: 2}))
	line.AddSeries("Signal", toLineData(dea), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDEA, Width: 2}))
	bar.Overlap(line)
	return bar
}

// buildPortfolioChart aligns each history point to its candle by timestamp;
// candles without a valuation stay empty.
func buildPortfolioChart(xAxis []string, candles []market.Candle, curves []Curve) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(portfolioHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Portfolio value", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(gridYAxis()),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), ConnectNulls: opts.Bool(true)}))
	line.SetXAxis(xAxis)
	pos := make(map[int64]int, len(candles))
	for i, c := range candles {
		pos[c.Timestamp] = i
	}
	for _, curve := range curves {
		data := make([]opts.LineData, len(candles))
		for i := range data {
			data[i] = opts.LineData{Value: nil}
		}
		for _, h := range curve.History {
			if i, ok := pos[h.Timestamp]; ok {
				data[i] = opts.LineData{Value: round(h.Value, 2)}
			}
		}
		var series []charts.SeriesOpts
		if curve.Color != "" {
			series = append(series, charts.WithLineStyleOpts(opts.LineStyle{Color: curve.Color, Width: 2}))
		}
		line.AddSeries(curve.Name, data, series...)
	}
	return line
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = c.TimeString()
	}
	return x
}

func toLineData(series []float64) []opts.LineData {
	out := make([]opts.LineData, len(series))
	for i, v := range series {
		if math.IsNaN(v) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 4)}
	}
	return out
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

// RenderPNG screenshots rendered HTML with headless Chrome. It fails when no
// Chrome binary is available.
func RenderPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if width <= 0 {
		width = chartWidthPx
	}
	if height <= 0 {
		height = klineHeightPx + volumeHeightPx + macdHeightPx + portfolioHeightPx
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()
	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	if err := chromedp.Run(timeoutCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 90),
	); err != nil {
		return nil, fmt.Errorf("visual: headless render: %w", err)
	}
	return screenshot, nil
}
