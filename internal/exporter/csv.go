package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/golang/snappy"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/files"
	"mibelpanel/pkg/contracts/domain"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	compress bool
	logger   *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance. compress wraps the output
// in the snappy framing format.
func NewCSVWriter(compress bool, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{compress: compress, logger: logger.With("component", "csv_writer")}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes a complete CSV file atomically
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	stream, err := w.CreateStreamWriter(filePath, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}
	defer stream.Abort()

	for i, record := range options.Records {
		if err := stream.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return stream.Close()
}

// WritePanel implements PanelWriter
func (w *CSVWriter) WritePanel(ctx context.Context, path string, panel *domain.Panel) error {
	stream, err := w.CreateStreamWriter(path, PanelHeaders(panel), false)
	if err != nil {
		return apperrors.NewPersistenceError("create panel csv", err)
	}
	defer stream.Abort()

	for i := range panel.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := stream.WriteRecord(panelRecord(&panel.Rows[i])); err != nil {
			return apperrors.NewPersistenceError(fmt.Sprintf("write panel row %d", i), err)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewPersistenceError("commit panel csv", err)
	}

	w.logger.InfoContext(ctx, "Panel written",
		slog.String("path", path),
		slog.Int("rows", len(panel.Rows)),
		slog.Bool("compressed", w.compress))
	return nil
}

// StreamWriter writes CSV records into a temporary file that replaces the
// target on Close
type StreamWriter struct {
	file   *files.AtomicFile
	snappy *snappy.Writer
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	file, err := files.CreateAtomic(filePath)
	if err != nil {
		return nil, err
	}

	s := &StreamWriter{file: file}
	var out io.Writer = file
	if w.compress {
		s.snappy = snappy.NewBufferedWriter(file)
		out = s.snappy
	}

	if bom {
		if _, err := out.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Abort()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	s.writer = csv.NewWriter(out)
	if len(headers) > 0 {
		if err := s.writer.Write(headers); err != nil {
			file.Abort()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return s, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream and moves the file into place
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Abort()
		return err
	}
	if s.snappy != nil {
		if err := s.snappy.Close(); err != nil {
			s.file.Abort()
			return err
		}
	}
	return s.file.Commit()
}

// Abort discards everything written so far. It is a no-op after Close.
func (s *StreamWriter) Abort() {
	s.file.Abort()
}
