package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/san-kum/touchy/internal/simdevice"
)

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Times  []float64     `json:"times"`
	Frames [][14]float64 `json:"frames"`
}

// WriteCSV writes frames with a header row.
func WriteCSV(w io.Writer, frames []simdevice.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(frameHeader); err != nil {
		return err
	}
	for _, f := range frames {
		if err := cw.Write(formatFrame(f)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the run and its frames as one JSON document. Each frame
// row follows the CSV column order.
func ExportJSON(w io.Writer, meta RunMetadata, frames []simdevice.Sample) error {
	data := ExportData{
		Run:    meta,
		Times:  make([]float64, len(frames)),
		Frames: make([][14]float64, len(frames)),
	}
	for i, f := range frames {
		data.Times[i] = f.Time
		data.Frames[i] = [14]float64{
			f.Time,
			f.Position.X, f.Position.Y, f.Position.Z,
			f.Velocity.X, f.Velocity.Y, f.Velocity.Z,
			f.Force.X, f.Force.Y, f.Force.Z,
			f.HandTarget.X, f.HandTarget.Y, f.HandTarget.Z,
			float64(f.Buttons),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
