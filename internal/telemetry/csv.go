package telemetry

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// ReadCSV parses a raw recording. The header must name at least the time,
// battery voltage, position, velocity and power columns. Acceleration columns
// are read when present and unknown columns are ignored. Rows are sorted by
// time and repeated timestamps keep their first row.
func ReadCSV(r io.Reader, name string) (*Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "reading header of %q", name)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	required := append([]string{"time"}, continuousColumns...)
	required = append(required, powerColumns...)
	for _, c := range required {
		if _, ok := index[c]; !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "%q in %q", c, name)
		}
	}
	columns := required
	for _, c := range []string{"x_acceleration", "y_acceleration", "angular_acceleration"} {
		if _, ok := index[c]; ok {
			columns = append(columns, c)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%q", name)
		}
		var row Row
		for _, c := range columns {
			col := index[c]
			if col >= len(record) {
				return nil, errors.Errorf("%q line %d: missing %s", name, line, c)
			}
			v, err := strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%q line %d column %s", name, line, c)
			}
			row[columnIndex(c)] = v
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	s := &Sample{Name: name}
	for i, row := range rows {
		if i > 0 && row[0] == rows[i-1][0] {
			continue
		}
		s.Append(row)
	}
	return s, nil
}

// WriteCSV writes every column of s with the ColumnNames header.
func WriteCSV(w io.Writer, s *Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ColumnNames[:]); err != nil {
		return err
	}
	record := make([]string, NumColumns)
	for i := 0; i < s.Len(); i++ {
		row := s.Row(i)
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV reads and resamples the recording at path.
func LoadCSV(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := ReadCSV(f, path)
	if err != nil {
		return nil, err
	}
	return Resample(raw)
}

// LoadAll loads every path, expanding glob patterns, in lexical order.
func LoadAll(patterns ...string) ([]*Sample, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", p)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("telemetry: no files match %q", p)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	samples := make([]*Sample, 0, len(paths))
	for _, p := range paths {
		s, err := LoadCSV(p)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
