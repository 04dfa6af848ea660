package summary

import (
	"fmt"
	"math"
)

// Missing is rendered for any value that has not been produced yet.
const Missing = "--"

const bytesPerMB = 1024 * 1024

var resolutionPresets = map[[2]int]string{
	{3840, 2160}: "4K",
	{2560, 1440}: "1440p",
	{1920, 1080}: "1080p",
	{1280, 720}:  "720p",
	{854, 480}:   "480p",
	{640, 360}:   "360p",
}

// FormatDuration renders seconds as mm:ss. Minutes are not capped at 59.
func FormatDuration(seconds float64) string {
	if !positive(seconds) {
		return Missing
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatBytes renders a byte count in megabytes with one decimal.
func FormatBytes(n int64) string {
	if n <= 0 {
		return Missing
	}
	return fmt.Sprintf("%.1f MB", float64(n)/bytesPerMB)
}

// FormatMegabytes renders a value that is already in megabytes.
func FormatMegabytes(mb float64) string {
	if !positive(mb) {
		return Missing
	}
	return fmt.Sprintf("%.1f MB", mb)
}

// FormatResolution returns the preset name for well-known sizes, otherwise WxH.
func FormatResolution(width, height int) string {
	if width <= 0 || height <= 0 {
		return Missing
	}
	if name, ok := resolutionPresets[[2]int{width, height}]; ok {
		return name
	}
	return fmt.Sprintf("%dx%d", width, height)
}

// FormatPSNR renders a decibel value.
func FormatPSNR(db float64) string {
	if !positive(db) {
		return Missing
	}
	return fmt.Sprintf("%.1f dB", db)
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Missing
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
