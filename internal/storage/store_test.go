package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/robosim/internal/sim"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Robot:   "pair",
		Engine:  "memory",
		Physics: true,
		Seed:    42,
		Joints:  []string{"hinge", "slide"},
		Frames: []sim.Frame{
			{
				Tick: 1, Time: 0.01,
				Root:       [3]float64{0, 0.12, 0},
				RootQuat:   [4]float64{1, 0, 0, 0},
				Positions:  []float64{0.1, 0.02},
				Velocities: []float64{1.5, -0.3},
				Targets:    []float64{0.5, 0},
				Colliders:  324,
			},
			{
				Tick: 2, Time: 0.02,
				Root:       [3]float64{0.001, 0.12, -1e-7},
				RootQuat:   [4]float64{0.9999, 0.01, 0, 0},
				Positions:  []float64{0.115, 0.019},
				Velocities: []float64{1.4, -0.1},
				Targets:    []float64{0.5, 0},
				Colliders:  324,
			},
		},
		Wall: 3 * time.Millisecond,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res := sampleResult()
	meta := NewMetadata(res, 0.01, "flat", map[string]float64{"tracking_rms": 0.4})
	meta.Fingerprint = Fingerprint([]byte("<robot/>"))

	id, err := st.Save(meta, res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty run id")
	}

	got, err := st.Load(id[:8])
	if err != nil {
		t.Fatalf("load by prefix failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("expected id %s, got %s", id, got.ID)
	}
	if got.Robot != "pair" || got.Seed != 42 || got.Ticks != 2 {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if got.Fingerprint != meta.Fingerprint {
		t.Errorf("expected fingerprint %s, got %s", meta.Fingerprint, got.Fingerprint)
	}
	if got.Metrics["tracking_rms"] != 0.4 {
		t.Errorf("expected tracking_rms 0.4, got %f", got.Metrics["tracking_rms"])
	}

	joints, frames, err := st.LoadFrames(id)
	if err != nil {
		t.Fatalf("load frames failed: %v", err)
	}
	if len(joints) != 2 || joints[0] != "hinge" || joints[1] != "slide" {
		t.Errorf("unexpected joints %v", joints)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	want := res.Frames[1]
	if frames[1].Root != want.Root || frames[1].RootQuat != want.RootQuat {
		t.Errorf("root mismatch: %+v", frames[1])
	}
	if frames[1].Velocities[1] != -0.1 || frames[1].Colliders != 324 || frames[1].Tick != 2 {
		t.Errorf("joint columns mismatch: %+v", frames[1])
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	res := sampleResult()
	older := NewMetadata(res, 0.01, "flat", nil)
	older.Timestamp = time.Now().Add(-time.Hour)
	if _, err := st.Save(older, res); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	newer, err := st.Save(NewMetadata(res, 0.01, "hills", nil), res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Stray directories are skipped.
	if err := os.MkdirAll(filepath.Join(dir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer {
		t.Errorf("expected newest run first")
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := New(filepath.Join(t.TempDir(), "absent")).Load("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing base dir, got %v", err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	res := sampleResult()

	id, err := st.Save(NewMetadata(res, 0.01, "flat", nil), res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{metaFile, framesFile} {
		if _, err := os.Stat(filepath.Join(dir, id, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestReadFramesRejectsBadHeader(t *testing.T) {
	if _, _, err := ReadFrames(bytes.NewBufferString("tick,time\n1,0.1\n")); err == nil {
		t.Error("expected error for short header")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]byte("<robot name=\"a\"/>"))
	if a != Fingerprint([]byte("<robot name=\"a\"/>")) {
		t.Error("fingerprint not deterministic")
	}
	if a == Fingerprint([]byte("<robot name=\"b\"/>")) {
		t.Error("different descriptions share a fingerprint")
	}
}
