package logging

import (
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const mb = 1024 * 1024

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/logs/eegrec.log", []byte("initial\n"), 0644)

	rw, err := NewRotatingWriterFs(fs, "/logs/eegrec.log", DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriterFs failed: %v", err)
	}
	if rw.CurrentSize() != int64(len("initial\n")) {
		t.Errorf("CurrentSize() = %d", rw.CurrentSize())
	}
	if _, err := rw.Write([]byte("appended\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = rw.Close()

	data, _ := afero.ReadFile(fs, "/logs/eegrec.log")
	if string(data) != "initial\nappended\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRotatingWriter_CreatesParentDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/a/b/c/eegrec.log", DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriterFs failed: %v", err)
	}
	defer rw.Close()

	if ok, _ := afero.Exists(fs, "/a/b/c/eegrec.log"); !ok {
		t.Error("log file was not created")
	}
	if rw.FilePath() != "/a/b/c/eegrec.log" {
		t.Errorf("FilePath() = %q", rw.FilePath())
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/logs/eegrec.log", RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}

	chunk := []byte(strings.Repeat("x", mb/2+1))
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	_ = rw.Close()

	for _, p := range []string{"/logs/eegrec.log", "/logs/eegrec.log.1", "/logs/eegrec.log.2"} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Errorf("%s should exist", p)
		}
	}
	if ok, _ := afero.Exists(fs, "/logs/eegrec.log.3"); ok {
		t.Error("backups beyond MaxBackups should be removed")
	}
	info, _ := fs.Stat("/logs/eegrec.log")
	if info.Size() != int64(len(chunk)) {
		t.Errorf("current file size = %d, want %d", info.Size(), len(chunk))
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/logs/eegrec.log", RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	chunk := []byte(strings.Repeat("y", mb-10))
	_, _ = rw.Write(chunk)
	_, _ = rw.Write(chunk)
	_ = rw.Close()

	if ok, _ := afero.Exists(fs, "/logs/eegrec.log.1"); ok {
		t.Error("no backup should be kept when MaxBackups is 0")
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/logs/eegrec.log", RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	first := strings.Repeat("a", mb-1)
	_, _ = rw.Write([]byte(first))
	_, _ = rw.Write([]byte("bb"))
	_ = rw.Close()

	if ok, _ := afero.Exists(fs, "/logs/eegrec.log.1"); ok {
		t.Error("uncompressed backup should have been replaced")
	}
	f, err := fs.Open("/logs/eegrec.log.1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != first {
		t.Errorf("decompressed backup has %d bytes, want %d", len(data), len(first))
	}
}

func TestRotatingWriter_Disabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/logs/eegrec.log", RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	chunk := []byte(strings.Repeat("z", mb))
	_, _ = rw.Write(chunk)
	_, _ = rw.Write(chunk)
	_ = rw.Close()

	if rw.CurrentSize() != 2*mb {
		t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), 2*mb)
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriterFs(afero.NewMemMapFs(), "/eegrec.log", DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync() after close error = %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestNewLoggerWithRotation_RequiresDir(t *testing.T) {
	if _, err := NewLoggerWithRotation("", LevelInfo, DefaultRotationConfig()); err == nil {
		t.Error("expected error for empty directory")
	}
}
