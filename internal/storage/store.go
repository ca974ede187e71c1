// Package storage persists finished runs under a base directory, one
// directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

const (
	metadataFile = "metadata.json"
	deckFile     = "deck.yaml"
	normsFile    = "norms.csv"
	timersFile   = "timers.json"
	metricsFile  = "metrics.prom"
)

// fixed leading columns of norms.csv; per-system columns follow
var normsHeader = []string{"step", "time", "iterations", "converged", "system_norm", "mean_norm"}

var ErrNoRun = errors.New("storage: run not found")

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
	ID            string             `json:"id"`
	Realm         string             `json:"realm"`
	Timestamp     time.Time          `json:"timestamp"`
	TimeStep      float64            `json:"time_step"`
	Steps         int                `json:"steps"`
	MaxIterations int                `json:"max_iterations"`
	Systems       []string           `json:"systems"`
	Metrics       map[string]float64 `json:"metrics"`
}

// Save writes the deck, metadata, per-step norms and timers of result and
// returns the new run id.
func (s *Store) Save(cfg *config.Config, result *realm.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:            runID,
		Realm:         cfg.Name,
		Timestamp:     now,
		TimeStep:      cfg.TimeIntegrator.TimeStep,
		Steps:         result.StepsTaken,
		MaxIterations: cfg.EquationSystems.MaxIterations,
		Systems:       result.Systems,
		Metrics:       result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, deckFile), cfg); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, timersFile), result.Timers); err != nil {
		return "", err
	}
	if err := writeNorms(filepath.Join(runDir, normsFile), result); err != nil {
		return "", err
	}
	return runID, nil
}

// SaveMetrics stores a Prometheus text exposition next to a saved run.
func (s *Store) SaveMetrics(runID string, write func(io.Writer) error) error {
	runDir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(runDir); err != nil {
		return fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	f, err := os.Create(filepath.Join(runDir, metricsFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeNorms(path string, result *realm.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, normsHeader...), result.Systems...)
	if err := w.Write(header); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	for _, st := range result.Steps {
		row := []string{
			strconv.Itoa(st.Index),
			format(st.Time),
			strconv.Itoa(st.Iterations),
			strconv.FormatBool(st.Converged),
			format(st.SystemNorm),
			format(st.MeanNorm),
		}
		for _, name := range result.Systems {
			row = append(row, format(st.Norms[name]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every readable run, newest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadDeck returns the deck a run was started from.
func (s *Store) LoadDeck(runID string) (*config.Config, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, deckFile))
	if err != nil {
		return nil, err
	}
	cfg := &config.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Store) LoadTimers(runID string) ([]eqsys.TimeReport, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, timersFile))
	if err != nil {
		return nil, err
	}
	var timers []eqsys.TimeReport
	if err := json.Unmarshal(data, &timers); err != nil {
		return nil, err
	}
	return timers, nil
}

// LoadSteps reads norms.csv back into steps and the system column order.
func (s *Store) LoadSteps(runID string) ([]realm.Step, []string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, normsFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("storage: %s: empty %s", runID, normsFile)
	}
	if len(records[0]) < len(normsHeader) {
		return nil, nil, fmt.Errorf("storage: %s: short %s header", runID, normsFile)
	}
	systems := records[0][len(normsHeader):]

	steps := make([]realm.Step, 0, len(records)-1)
	for i, rec := range records[1:] {
		st, err := parseStep(rec, systems)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %s line %d: %w", normsFile, i+2, err)
		}
		steps = append(steps, st)
	}
	return steps, systems, nil
}

func parseStep(rec []string, systems []string) (realm.Step, error) {
	if len(rec) != len(normsHeader)+len(systems) {
		return realm.Step{}, fmt.Errorf("want %d columns, got %d", len(normsHeader)+len(systems), len(rec))
	}
	var (
		st  realm.Step
		err error
	)
	if st.Index, err = strconv.Atoi(rec[0]); err != nil {
		return st, err
	}
	if st.Time, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return st, err
	}
	if st.Iterations, err = strconv.Atoi(rec[2]); err != nil {
		return st, err
	}
	if st.Converged, err = strconv.ParseBool(rec[3]); err != nil {
		return st, err
	}
	if st.SystemNorm, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return st, err
	}
	if st.MeanNorm, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return st, err
	}
	st.Norms = make(map[string]float64, len(systems))
	for i, name := range systems {
		v, err := strconv.ParseFloat(rec[len(normsHeader)+i], 64)
		if err != nil {
			return st, err
		}
		st.Norms[name] = v
	}
	return st, nil
}
