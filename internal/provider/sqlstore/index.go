package sqlstore

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fruitsalade/docnav/internal/logging"
	"github.com/fruitsalade/docnav/pkg/models"
)

// IndexStats counts the entries written by Index.
type IndexStats struct {
	Dirs  int `json:"dirs"`
	Files int `json:"files"`
}

// Index walks dir and records every folder and file below it in the
// files table. Paths are stored relative to dir with a leading slash.
func (s *Store) Index(ctx context.Context, dir string) (IndexStats, error) {
	var stats IndexStats
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		row := &FileRow{
			Name:    d.Name(),
			Path:    "/" + filepath.ToSlash(rel),
			ModTime: info.ModTime(),
			IsDir:   d.IsDir(),
		}
		if !d.IsDir() {
			row.Size = info.Size()
			row.MimeType = models.MimeTypeFromName(d.Name())
		}
		if err := s.UpsertFile(ctx, row); err != nil {
			return fmt.Errorf("index %s: %w", row.Path, err)
		}
		if d.IsDir() {
			stats.Dirs++
		} else {
			stats.Files++
		}
		logging.Debug("indexed", zap.String("path", row.Path), zap.Bool("dir", row.IsDir))
		return nil
	})
	return stats, err
}
