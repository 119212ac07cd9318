// Leveled logging for RC-Driver Go migration
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FileSink is an io.Writer that appends to a log file and rotates it by
// size. Rotated files get a timestamp suffix; the oldest are pruned once
// more than Keep backups exist.
type FileSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	keep     int
	compress bool
	size     int64
	f        *os.File
}

// FileSinkConfig configures a FileSink. Zero values mean 10 MB per file
// and 5 backups.
type FileSinkConfig struct {
	Path     string
	MaxMB    int
	Keep     int
	Compress bool
}

// NewFileSink opens (or creates) the log file and its directory.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if cfg.MaxMB <= 0 {
		cfg.MaxMB = 10
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 5
	}
	s := &FileSink{
		path:     cfg.Path,
		maxBytes: int64(cfg.MaxMB) * 1024 * 1024,
		keep:     cfg.Keep,
		compress: cfg.Compress,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	s.f = f
	s.size = info.Size()
	return nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size+int64(len(p)) > s.maxBytes {
		if err := s.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

func (s *FileSink) rotate() error {
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	backup := s.backupName(time.Now())
	if err := os.Rename(s.path, backup); err != nil {
		s.open()
		return fmt.Errorf("rename log file: %w", err)
	}
	if s.compress {
		go gzipFile(backup)
	}
	go s.prune()
	return s.open()
}

func (s *FileSink) backupName(t time.Time) string {
	ext := filepath.Ext(s.path)
	return fmt.Sprintf("%s.%s%s",
		strings.TrimSuffix(s.path, ext), t.Format("20060102-150405"), ext)
}

// prune removes the oldest backups beyond the keep count. The timestamp
// suffix sorts lexically in time order, so no stat calls are needed.
func (s *FileSink) prune() {
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if name := e.Name(); name != base && isBackupName(name, stem, ext) {
			backups = append(backups, name)
		}
	}
	sort.Strings(backups)
	for len(backups) > s.keep {
		os.Remove(filepath.Join(dir, backups[0]))
		backups = backups[1:]
	}
}

// isBackupName reports whether name is stem.YYYYMMDD-HHMMSS ext, with an
// optional .gz on the end.
func isBackupName(name, stem, ext string) bool {
	name = strings.TrimSuffix(name, ".gz")
	if !strings.HasPrefix(name, stem+".") || !strings.HasSuffix(name, ext) {
		return false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, stem+"."), ext)
	if len(ts) != 15 || ts[8] != '-' {
		return false
	}
	_, err1 := strconv.Atoi(ts[:8])
	_, err2 := strconv.Atoi(ts[9:])
	return err1 == nil && err2 == nil
}

func gzipFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()
	dst, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return
	}
	gz.Close()
	dst.Close()
	os.Remove(path)
}

// Size returns the current size of the active log file.
func (s *FileSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Sync flushes the active file to stable storage.
func (s *FileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Sync()
}

// Close closes the active file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// NewFileLogger returns a logger writing plain text to a rotating file.
func NewFileLogger(prefix string, cfg FileSinkConfig) (*Logger, *FileSink, error) {
	sink, err := NewFileSink(cfg)
	if err != nil {
		return nil, nil, err
	}
	l := New(prefix)
	l.SetWriter(sink)
	l.SetColorize(false)
	return l, sink, nil
}
