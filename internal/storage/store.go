// Package storage keeps recorded episodes on disk: one directory per run
// holding metadata.json and frames.csv.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/san-kum/robosim/internal/sim"
)

var (
	ErrNotFound  = errors.New("storage: run not found")
	ErrAmbiguous = errors.New("storage: run id prefix is ambiguous")
)

const (
	metaFile   = "metadata.json"
	framesFile = "frames.csv"
)

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
	ID          string             `json:"id"`
	Robot       string             `json:"robot"`
	Fingerprint string             `json:"fingerprint"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Ticks       int                `json:"ticks"`
	Terrain     string             `json:"terrain"`
	Engine      string             `json:"engine"`
	Physics     bool               `json:"physics"`
	Joints      []string           `json:"joints"`
	WallMillis  int64              `json:"wall_ms"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Fingerprint identifies a robot description by content.
func Fingerprint(description []byte) string {
	return strconv.FormatUint(xxhash.Sum64(description), 16)
}

// NewMetadata fills the run-derived fields of a metadata record.
func NewMetadata(res *sim.Result, dt float64, terrain string, metrics map[string]float64) RunMetadata {
	return RunMetadata{
		Robot:      res.Robot,
		Seed:       res.Seed,
		Dt:         dt,
		Ticks:      len(res.Frames),
		Terrain:    terrain,
		Engine:     res.Engine,
		Physics:    res.Physics,
		Joints:     res.Joints,
		WallMillis: res.Wall.Milliseconds(),
		Metrics:    metrics,
	}
}

// Save writes a run and returns its new ID.
func (s *Store) Save(meta RunMetadata, res *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaPath := filepath.Join(runDir, metaFile)
	f, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := ExportJSON(f, meta); err != nil {
		return "", fmt.Errorf("storage: write metadata: %w", err)
	}

	csvPath := filepath.Join(runDir, framesFile)
	cf, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer cf.Close()
	if err := WriteFrames(cf, res.Joints, res.Frames); err != nil {
		return "", fmt.Errorf("storage: write frames: %w", err)
	}

	return meta.ID, nil
}

// List returns every readable run, newest first.
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
		meta, err := s.readMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// Load reads a run's metadata. id may be any unique prefix of a run ID.
func (s *Store) Load(id string) (*RunMetadata, error) {
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.readMeta(full)
}

// LoadFrames reads a run's recorded frames back.
func (s *Store) LoadFrames(id string) ([]string, []sim.Frame, error) {
	full, err := s.resolve(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, full, framesFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadFrames(f)
}

func (s *Store) readMeta(dir string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, dir, metaFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) resolve(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	match := ""
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if e.Name() == prefix {
			return prefix, nil
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
		}
		match = e.Name()
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return match, nil
}

// ExportJSON writes v as indented JSON.
func ExportJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
