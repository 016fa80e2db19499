package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// FileSource feeds a fixed list of .eml files through the RecordSource
// interface. The record id is the file name without its extension.
type FileSource struct {
	paths  []string
	pos    int
	logger *zap.Logger
}

var _ core.RecordSource = (*FileSource)(nil)

// NewFileSource creates a source over the given .eml paths.
func NewFileSource(logger *zap.Logger, paths ...string) *FileSource {
	return &FileSource{paths: paths, logger: logger}
}

func (s *FileSource) Next(ctx context.Context) (*core.EmailRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.pos >= len(s.paths) {
			return nil, io.EOF
		}
		path := s.paths[s.pos]
		s.pos++

		f, err := os.Open(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		rec, err := ParseEML(f)
		f.Close()
		if err != nil {
			s.logger.Warn("Skipping unparseable file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if rec.ID == "" {
			base := filepath.Base(path)
			rec.ID = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return rec, nil
	}
}

func (s *FileSource) Close() error {
	return nil
}
