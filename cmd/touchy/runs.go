package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/touchy/internal/analysis"
	"github.com/san-kum/touchy/internal/export"
	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/simdevice"
	"github.com/san-kum/touchy/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tRATE\tFRAMES\tERR\tSCENARIO")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%gHz\t%d\t0x%04x\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Rate,
			run.Frames,
			run.LastError,
			run.Scenario,
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []simdevice.Sample, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(frames) == 0 {
		return nil, nil, fmt.Errorf("run %s has no frames", runID)
	}
	return meta, frames, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("frames: %d\n\n", len(frames))

	c := r3.Vec{X: meta.Sphere[0], Y: meta.Sphere[1], Z: meta.Sphere[2]}
	series := []struct {
		caption string
		value   func(simdevice.Sample) float64
	}{
		{"x (m)", func(s simdevice.Sample) float64 { return s.Position.X }},
		{"y (m)", func(s simdevice.Sample) float64 { return s.Position.Y }},
		{"z (m)", func(s simdevice.Sample) float64 { return s.Position.Z }},
		{fmt.Sprintf("distance to center (m), radius %.3f", meta.Sphere[3]), func(s simdevice.Sample) float64 {
			return r3.Norm(r3.Sub(s.Position, c))
		}},
		{"|force| (N)", func(s simdevice.Sample) float64 { return r3.Norm(s.Force) }},
	}

	for _, s := range series {
		data := make([]float64, len(frames))
		for i, f := range frames {
			data[i] = s.value(f)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// frameRate recovers the recording rate from frame timestamps, which differs
// from the servo rate when frames were decimated.
func frameRate(meta *storage.RunMetadata, frames []simdevice.Sample) float64 {
	if len(frames) < 2 {
		return meta.Rate
	}
	span := frames[len(frames)-1].Time - frames[0].Time
	if span <= 0 {
		return meta.Rate
	}
	return float64(len(frames)-1) / span
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fs := frameRate(meta, frames)
	sum := analysis.Summarize(frames, fs)

	fmt.Printf("contact analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "frames\t%d\n", sum.Frames)
	fmt.Fprintf(w, "contact frames\t%d (%.1f%%)\n", sum.Contacts, 100*float64(sum.Contacts)/float64(sum.Frames))
	fmt.Fprintf(w, "contact episodes\t%d\n", sum.Episodes)
	fmt.Fprintf(w, "mean |F|\t%.4f N\n", sum.MeanForce)
	fmt.Fprintf(w, "std |F|\t%.4f N\n", sum.StdForce)
	fmt.Fprintf(w, "max |F|\t%.4f N\n", sum.MaxForce)
	if err := w.Flush(); err != nil {
		return err
	}

	ps := analysis.PowerSpectrum(analysis.ForceMagnitudes(frames))
	if len(ps) < 2 {
		return nil
	}
	plotData := ps[1:]
	if len(plotData) > 100 {
		plotData = plotData[:100]
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("force spectrum"),
	))

	if sum.Buzz.Frequency > 0 {
		fmt.Printf("\ndominant frequency: %.2f hz (%.0f%% of spectrum)\n", sum.Buzz.Frequency, 100*sum.Buzz.Share)
	}
	return nil
}

func outputWriter() (io.Writer, func() error, error) {
	if exportOut == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := outputWriter()
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(w, frames); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := outputWriter()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, *meta, frames); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	p, err := export.ParsePlane(plane)
	if err != nil {
		return err
	}
	if len(svgSize) != 2 || svgSize[0] <= 0 || svgSize[1] <= 0 {
		return fmt.Errorf("--size needs a positive width,height, got %v", svgSize)
	}

	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	sphere := force.Sphere{
		Center: r3.Vec{X: meta.Sphere[0], Y: meta.Sphere[1], Z: meta.Sphere[2]},
		Radius: meta.Sphere[3],
	}
	svg := export.TrajectorySVG(frames, sphere, p, svgSize[0], svgSize[1])

	w, closeFn, err := outputWriter()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, svg); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}
