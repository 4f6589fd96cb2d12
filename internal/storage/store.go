package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

var frameHeader = []string{
	"time",
	"px", "py", "pz",
	"vx", "vy", "vz",
	"fx", "fy", "fz",
	"hx", "hy", "hz",
	"buttons",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Timestamp  time.Time          `json:"timestamp"`
	Rate       float64            `json:"rate"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Stiffness  float64            `json:"stiffness"`
	Sphere     [4]float64         `json:"sphere"`
	Frames     int                `json:"frames"`
	LastError  int                `json:"last_error"`
	Scenario   string             `json:"scenario,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes meta and frames under a fresh run directory and returns its ID.
// meta.ID, Timestamp and Frames are filled in.
func (s *Store) Save(meta RunMetadata, frames []simdevice.Sample) (string, error) {
	runID, runDir, err := s.newRunDir(meta.Model)
	if err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Frames = len(frames)

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, frames); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) newRunDir(model string) (string, string, error) {
	base := fmt.Sprintf("%s_%d", model, time.Now().Unix())
	runID := base
	for n := 2; ; n++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if os.IsNotExist(err) {
			if err := os.MkdirAll(s.baseDir, 0755); err != nil {
				return "", "", err
			}
			continue
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s_%d", base, n)
	}
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]simdevice.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []simdevice.Sample{}, nil
	}

	frames := make([]simdevice.Sample, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		sample, err := parseFrame(records[i])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+1, err)
		}
		frames = append(frames, sample)
	}
	return frames, nil
}

// Path is the directory holding runID.
func (s *Store) Path(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func formatFrame(f simdevice.Sample) []string {
	row := make([]string, 0, len(frameHeader))
	row = append(row, strconv.FormatFloat(f.Time, 'f', 6, 64))
	for _, v := range []r3.Vec{f.Position, f.Velocity, f.Force, f.HandTarget} {
		row = append(row,
			strconv.FormatFloat(v.X, 'g', -1, 64),
			strconv.FormatFloat(v.Y, 'g', -1, 64),
			strconv.FormatFloat(v.Z, 'g', -1, 64),
		)
	}
	return append(row, strconv.Itoa(int(f.Buttons)))
}

func parseFrame(record []string) (simdevice.Sample, error) {
	var f simdevice.Sample
	if len(record) != len(frameHeader) {
		return f, fmt.Errorf("expected %d fields, got %d", len(frameHeader), len(record))
	}

	vals := make([]float64, len(record)-1)
	for i := range vals {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return f, fmt.Errorf("%s: %w", frameHeader[i], err)
		}
		vals[i] = v
	}
	buttons, err := strconv.Atoi(record[len(record)-1])
	if err != nil {
		return f, fmt.Errorf("buttons: %w", err)
	}

	vec := func(i int) r3.Vec { return r3.Vec{X: vals[i], Y: vals[i+1], Z: vals[i+2]} }
	f.Time = vals[0]
	f.Position = vec(1)
	f.Velocity = vec(4)
	f.Force = vec(7)
	f.HandTarget = vec(10)
	f.Buttons = device.Buttons(buttons)
	return f, nil
}
