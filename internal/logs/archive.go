// Package logs provides housekeeping over the per-package log directory: a
// size/age summary and compaction of old logs, so a build host running the
// driver repeatedly doesn't accumulate pbuilder_logs/*.log forever.
package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/paguilar/br-pbuilder/internal/berrors"
)

// Stats summarizes the contents of a log directory.
type Stats struct {
	Files     int
	TotalSize int64
	Oldest    time.Time
	Newest    time.Time
}

// Info walks logDir and reports file count, total size, and the mtime range
// across every *.log and *.log.zst file.
func Info(logDir string) (Stats, error) {
	var st Stats

	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, berrors.New(berrors.KindLogIO, "", "failed to read log directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") && !strings.HasSuffix(name, ".log.zst") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		st.Files++
		st.TotalSize += info.Size()
		mtime := info.ModTime()
		if st.Oldest.IsZero() || mtime.Before(st.Oldest) {
			st.Oldest = mtime
		}
		if st.Newest.IsZero() || mtime.After(st.Newest) {
			st.Newest = mtime
		}
	}

	return st, nil
}

// Prune zstd-compresses every *.log file in logDir whose mtime is older than
// olderThan, replacing it with a *.log.zst file and removing the original.
// It returns the number of files compressed.
func Prune(logDir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, berrors.New(berrors.KindLogIO, "", "failed to read log directory", err)
	}

	cutoff := time.Now().Add(-olderThan)
	compressed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		src := filepath.Join(logDir, entry.Name())
		if err := compressFile(src); err != nil {
			return compressed, err
		}
		compressed++
	}

	return compressed, nil
}

func compressFile(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to open log for compression", err)
	}
	defer in.Close()

	dstPath := src + ".zst"
	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to create compressed log", err)
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		os.Remove(dstPath)
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to open zstd encoder", err)
	}

	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(dstPath)
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to compress log", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(dstPath)
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to finalize compressed log", err)
	}
	if err := out.Close(); err != nil {
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to close compressed log", err)
	}

	if err := os.Remove(src); err != nil {
		return berrors.New(berrors.KindLogIO, filepath.Base(src), "failed to remove original log", err)
	}
	return nil
}

// FormatStats renders Stats the way "pbuilder logs info" prints them.
func FormatStats(st Stats) string {
	if st.Files == 0 {
		return "no log files"
	}
	return fmt.Sprintf("%d files, %.1f MiB, oldest %s, newest %s",
		st.Files, float64(st.TotalSize)/(1024*1024),
		st.Oldest.Format(time.RFC3339), st.Newest.Format(time.RFC3339))
}
