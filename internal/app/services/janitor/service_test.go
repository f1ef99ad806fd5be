package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSweepArtifacts(t *testing.T) {
	dir := t.TempDir()
	stale := writeAged(t, dir, "temp_com.sitewrap.old_1.apk", 2*time.Hour)
	fresh := writeAged(t, dir, "temp_com.sitewrap.new_2.apk", time.Minute)
	unrelated := writeAged(t, dir, "keep.txt", 3*time.Hour)

	svc := New(dir, time.Hour, nil, nil)
	if removed := svc.sweepArtifacts(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale artifact survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh artifact removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatal("non-temp file removed")
	}
}

func TestSweepMissingDir(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "nope"), time.Hour, nil, nil)
	if removed := svc.sweepArtifacts(); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

type countSweeper struct{ swept int }

func (c *countSweeper) Sweep() int { c.swept++; return 3 }

func TestRunInvokesSessionSweeper(t *testing.T) {
	sweeper := &countSweeper{}
	svc := New(t.TempDir(), time.Hour, sweeper, nil)
	svc.run()
	if sweeper.swept != 1 {
		t.Fatalf("sweeper calls = %d, want 1", sweeper.swept)
	}
}
