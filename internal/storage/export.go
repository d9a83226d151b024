package storage

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/san-kum/mecsim/internal/telemetry"
)

type ExportData struct {
	Run     RunMetadata          `json:"run"`
	Columns map[string][]float64 `json:"columns,omitempty"`
}

// ExportJSON writes a run's metadata and trajectory columns as one JSON
// document. Runs without a trajectory export metadata only.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta}

	traj, err := s.LoadTrajectory(runID)
	switch {
	case errors.Is(err, ErrNoTrajectory):
	case err != nil:
		return err
	default:
		data.Columns = make(map[string][]float64, telemetry.NumColumns)
		for _, name := range telemetry.ColumnNames {
			data.Columns[name] = traj.Column(name)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
