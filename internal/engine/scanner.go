package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/filter"
)

// ScannerConfig controls how a source directory becomes archive sources.
type ScannerConfig struct {
	Root          string
	Recursive     bool
	PreserveRoot  bool
	Flatten       bool
	SkipEmptyDirs bool
	Names         *filter.Chain
	Rules         *filter.Chain
	// Skip is an absolute path never added, normally the archive itself.
	Skip   string
	Logger *slog.Logger
}

// Scanner walks one source directory in lexical order.
type Scanner struct {
	cfg    ScannerConfig
	prefix string
	seen   map[string]int
	out    []codec.Source
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Scanner{cfg: cfg, seen: make(map[string]int)}
	if cfg.PreserveRoot && !cfg.Flatten {
		s.prefix = filepath.Base(filepath.Clean(cfg.Root))
	}
	return s
}

// Scan returns the files, and leaf empty directories when enabled, below
// the root. Without Recursive only the root's own files are returned.
func (s *Scanner) Scan(ctx context.Context) ([]codec.Source, error) {
	s.out = s.out[:0]
	if _, err := s.scanDir(ctx, s.cfg.Root, ""); err != nil {
		return nil, err
	}
	return s.out, nil
}

// scanDir reports whether the directory had any entries on disk.
func (s *Scanner) scanDir(ctx context.Context, dir, rel string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("readdir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := s.processEntry(ctx, filepath.Join(dir, entry.Name()), path.Join(rel, entry.Name())); err != nil {
			return false, err
		}
	}
	return len(entries) > 0, nil
}

func (s *Scanner) processEntry(ctx context.Context, srcPath, rel string) error {
	if s.cfg.Skip != "" && srcPath == s.cfg.Skip {
		return nil
	}
	info, err := os.Lstat(srcPath)
	if err != nil {
		return fmt.Errorf("lstat %s: %w", srcPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(srcPath)
		if err != nil {
			s.cfg.Logger.Warn("skipping dangling symlink", "path", srcPath)
			return nil
		}
		if target.IsDir() {
			s.cfg.Logger.Debug("not following directory symlink", "path", srcPath)
			return nil
		}
		info = target
	}

	switch {
	case info.IsDir():
		if !s.cfg.Recursive || !s.cfg.Rules.Match(rel, true, 0) {
			return nil
		}
		before := len(s.out)
		hadEntries, err := s.scanDir(ctx, srcPath, rel)
		if err != nil {
			return err
		}
		if !hadEntries && len(s.out) == before && !s.cfg.SkipEmptyDirs && !s.cfg.Flatten {
			s.out = append(s.out, codec.Source{Path: srcPath, Name: s.name(rel), IsDir: true})
		}
	case info.Mode().IsRegular():
		if !s.cfg.Rules.Match(rel, false, info.Size()) || !s.cfg.Names.Match(rel, false, info.Size()) {
			return nil
		}
		s.out = append(s.out, codec.Source{Path: srcPath, Name: s.name(rel), Size: info.Size()})
	default:
		s.cfg.Logger.Debug("skipping special file", "path", srcPath, "mode", info.Mode())
	}
	return nil
}

// name maps a root-relative path to its archive name.
func (s *Scanner) name(rel string) string {
	if !s.cfg.Flatten {
		return path.Join(s.prefix, rel)
	}
	return uniqueName(s.seen, path.Base(rel))
}

// uniqueName returns base, or "stem (n).ext" if base was already taken.
func uniqueName(seen map[string]int, base string) string {
	key := strings.ToLower(base)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return base
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		ck := strings.ToLower(candidate)
		if seen[ck] == 0 {
			seen[ck] = 1
			seen[key] = n
			return candidate
		}
	}
}
