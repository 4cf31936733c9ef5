package tg_charts

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"dog-holders/internal/features/holders"
	logging "dog-holders/internal/infra/log"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	ChartWidth = 1600

	chartPaddingTop    = 140.0 // title area
	chartPaddingBottom = 60.0
	rowHeight          = 48.0
	barHeightRatio     = 0.7

	labelAreaLeft = 40.0
	barAreaLeft   = 520.0
	barAreaRight  = 1380.0 // room for the percentage after the longest bar

	titleFontSize = 44.0
	rowFontSize   = 24.0

	DefaultTopN = 20
)

var (
	backgroundColor = color.RGBA{18, 18, 18, 255}
	barColor        = color.RGBA{245, 166, 35, 255}
	textColor       = color.White
	mutedColor      = color.RGBA{160, 160, 160, 255}
)

// fontPaths - checked in order, first loadable wins
var fontPaths = []string{
	"etc/fonts/InterVariable.ttf",
	"etc/fonts/Inter-Regular.ttf",
	"~/Library/Fonts/InterVariable.ttf",
	"~/Library/Fonts/Inter-Regular.ttf",
	"/Library/Fonts/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
	"/usr/local/share/fonts/Inter-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

// ChartHeight returns the image height for n bars.
func ChartHeight(n int) int {
	return int(chartPaddingTop + float64(n)*rowHeight + chartPaddingBottom)
}

// GenerateHoldersChart draws a horizontal bar per holder for the first topN rows
// (ordered as exported) and saves it as PNG to path.
func GenerateHoldersChart(rows []holders.RankedRow, path string, topN int) error {
	if len(rows) == 0 {
		return errors.New("no holders to chart")
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(rows) > topN {
		rows = rows[:topN]
	}

	dc := gg.NewContext(ChartWidth, ChartHeight(len(rows)))
	dc.SetColor(backgroundColor)
	dc.Clear()

	fontPath, fontLoaded := loadFont(dc, titleFontSize)

	dc.SetColor(textColor)
	title := fmt.Sprintf("DOG top holders #%d-#%d", rows[0].Rank, rows[len(rows)-1].Rank)
	dc.DrawString(title, labelAreaLeft, chartPaddingTop/2+titleFontSize/3)

	if fontLoaded {
		_ = dc.LoadFontFace(fontPath, rowFontSize)
	}

	var maxBalance int64
	for _, row := range rows {
		if row.Balance > maxBalance {
			maxBalance = row.Balance
		}
	}
	if maxBalance == 0 {
		maxBalance = 1 // all-zero page still renders labels
	}

	barArea := barAreaRight - barAreaLeft
	for i, row := range rows {
		top := chartPaddingTop + float64(i)*rowHeight
		centerY := top + rowHeight/2

		dc.SetColor(mutedColor)
		dc.DrawStringAnchored(fmt.Sprintf("#%d  %s", row.Rank, shortAddress(row.Address)), labelAreaLeft, centerY, 0, 0.35)

		barWidth := float64(row.Balance) / float64(maxBalance) * barArea
		barHeight := rowHeight * barHeightRatio
		dc.SetColor(barColor)
		dc.DrawRectangle(barAreaLeft, centerY-barHeight/2, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(row.Percentage, barAreaLeft+barWidth+12, centerY, 0, 0.35)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create charts directory: %w", err)
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat chart file: %w", err)
	}
	if fileInfo.Size() == 0 {
		os.Remove(path)
		logging.LogError("Chart file is empty after rendering", zap.String("filename", path))
		return errors.New("chart file is empty after rendering")
	}

	logging.LogInfo("Holders chart generated",
		zap.String("filename", path),
		zap.Int64("fileSize", fileInfo.Size()),
		zap.Int("barsCount", len(rows)))
	return nil
}

// loadFont tries fontPaths at the given size; gg keeps its basic font otherwise.
func loadFont(dc *gg.Context, size float64) (string, bool) {
	for _, fontPath := range fontPaths {
		expanded := expandHome(fontPath)
		if _, err := os.Stat(expanded); err != nil {
			continue
		}
		if err := dc.LoadFontFace(expanded, size); err != nil {
			logging.LogWarn("Font file exists but failed to load", zap.String("path", expanded), zap.Error(err))
			continue
		}
		logging.LogDebug("Loaded chart font", zap.String("path", expanded))
		return expanded, true
	}
	logging.LogWarn("No chart font found, using default face", zap.Int("paths_checked", len(fontPaths)))
	return "", false
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}

// shortAddress keeps both ends of long addresses: bc1pjfh6...x4k2
func shortAddress(addr string) string {
	if len(addr) <= 20 {
		return addr
	}
	return addr[:10] + "..." + addr[len(addr)-6:]
}
