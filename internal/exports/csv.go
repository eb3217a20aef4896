package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVRenderer writes each export as a CSV file under a base directory.
type CSVRenderer struct {
	dir string
}

// NewCSVRenderer builds a renderer rooted at dir, creating it if needed.
func NewCSVRenderer(dir string) (*CSVRenderer, error) {
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &CSVRenderer{dir: dir}, nil
}

var _ Renderer = (*CSVRenderer)(nil)

func (r *CSVRenderer) Render(ctx context.Context, name string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(r.dir, sanitizeName(name)+".csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing export row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing export: %w", err)
	}
	return file.Sync()
}

// sanitizeName keeps export names filesystem-safe.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
