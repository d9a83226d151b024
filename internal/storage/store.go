package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/telemetry"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

var ErrNoTrajectory = errors.New("storage: run has no trajectory")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one simulate, fit or search invocation.
type RunMetadata struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Sample    string             `json:"sample,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Dt        float64            `json:"dt"`
	Steps     int                `json:"steps"`
	Cost      float64            `json:"cost"`
	Params    drive.Parameters   `json:"params"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Save writes meta and, when non-nil, the trajectory into a new run
// directory and returns its ID.
func (s *Store) Save(meta RunMetadata, trajectory *telemetry.Sample) (string, error) {
	meta.ID = fmt.Sprintf("%s_%d", meta.Kind, time.Now().UnixNano())
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if trajectory != nil {
		meta.Steps = trajectory.Len()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

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

	if trajectory == nil {
		return meta.ID, nil
	}

	csvFile, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := telemetry.WriteCSV(csvFile, trajectory); err != nil {
		return "", errors.Wrapf(err, "writing trajectory of %s", meta.ID)
	}
	return meta.ID, nil
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}

	return &meta, nil
}

// LoadTrajectory reads a stored trajectory back exactly as written.
func (s *Store) LoadTrajectory(runID string) (*telemetry.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNoTrajectory, "run %s", runID)
		}
		return nil, err
	}
	defer file.Close()

	return telemetry.ReadCSV(file, runID)
}
