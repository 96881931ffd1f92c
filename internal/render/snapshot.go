package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"backchart/internal/chart"
)

// SnapshotOptions 控制无头浏览器截图。
type SnapshotOptions struct {
	// Timeout 整个渲染加截图的上限，零值取 30s。
	Timeout time.Duration
	// Quality 截图质量，零值取 90。
	Quality int
}

func (o *SnapshotOptions) withDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Quality <= 0 {
		o.Quality = 90
	}
}

// Capture 先把模型渲染成临时 HTML，再用无头 Chrome 截成 PNG 返回。
// echarts 在浏览器里异步绘制，等 canvas 出现后再截。
func Capture(ctx context.Context, title string, model chart.Model, options SnapshotOptions) ([]byte, error) {
	options.withDefaults()

	dir, err := os.MkdirTemp("", "backchart-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	htmlPath := filepath.Join(dir, "chart.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("create html: %w", err)
	}
	if err := WritePage(f, title, model); err != nil {
		f.Close()
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.WindowSize(1280, 1600),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, options.Timeout)
	defer cancelRun()

	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("file://" + htmlPath),
		chromedp.WaitVisible("canvas", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&buf, options.Quality),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Snapshot 截图并写入 outPath。
func Snapshot(ctx context.Context, title string, model chart.Model, outPath string, options SnapshotOptions) error {
	buf, err := Capture(ctx, title, model, options)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, buf, 0o644)
}
