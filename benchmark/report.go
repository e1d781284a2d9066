package benchmark

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
)

// WriteReport prints one row per benchmarked algorithm and marks the fastest.
func WriteReport(w io.Writer, results []model.BenchmarkResult) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tAVG TIME (ms)\tAVG FPS\tDETECTIONS\tFRAMES")
	paint := map[int]*color.Color{0: color.New(color.Bold)}

	fastest := -1
	for i, r := range results {
		if r.AvgFPS > 0 && (fastest < 0 || r.AvgFPS > results[fastest].AvgFPS) {
			fastest = i
		}
	}
	if fastest >= 0 {
		paint[fastest+1] = color.New(color.FgGreen)
	}

	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.2f\t%.1f\t%d\t%d\n",
			r.Algorithm.String(), r.AvgInferenceTimeMs, r.AvgFPS, r.TotalDetections, r.Frames)
	}
	if len(results) == 0 {
		fmt.Fprintln(tw, "no algorithm could be benchmarked")
		paint[1] = color.New(color.FgYellow)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writePainted(w, &buf, paint)
}

// writePainted copies an aligned table to w, colouring whole lines. Colour
// codes inside tabwriter cells would count toward the cell width.
func writePainted(w io.Writer, table *bytes.Buffer, paint map[int]*color.Color) error {
	lines := strings.SplitAfter(table.String(), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		if c, ok := paint[i]; ok {
			text := strings.TrimSuffix(line, "\n")
			line = c.Sprint(text) + line[len(text):]
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func stars(n int) string {
	n = max(0, min(n, 5))
	return strings.Repeat("*", n) + strings.Repeat(".", 5-n)
}

// WriteComparison prints the profile catalog with star ratings followed by
// the recommendations for the common requirement combinations.
func WriteComparison(w io.Writer, profiles []model.AlgorithmProfile) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tSPEED\tACCURACY\tMEMORY\tMIN MB\tGPU\tBATCH\tINPUT")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%dx%d\n",
			p.Name, stars(p.SpeedRating), stars(p.AccuracyRating), stars(p.MemoryRating),
			p.MinMemoryMB, yesNo(p.RequiresGPU), yesNo(p.SupportsBatch),
			p.InputSize.Width, p.InputSize.Height)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if err := writePainted(w, &buf, map[int]*color.Color{0: color.New(color.Bold)}); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, c := range []struct {
		label                  string
		realTime, highAccuracy bool
	}{
		{"real-time", true, false},
		{"high accuracy", false, true},
		{"balanced", false, false},
	} {
		kind := detect.Recommend(profiles, model.Size{}, c.realTime, c.highAccuracy)
		fmt.Fprintf(w, "recommended for %s: %s\n", c.label, color.CyanString(kind.String()))
	}

	if p, ok := detect.BestProfile(profiles, true); ok {
		fmt.Fprintf(w, "fastest: %s\n", detect.ProfileLine(p))
	}
	if p, ok := detect.BestProfile(profiles, false); ok {
		fmt.Fprintf(w, "most accurate: %s\n", detect.ProfileLine(p))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
