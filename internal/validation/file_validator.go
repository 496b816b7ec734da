package validation

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "mibelpanel/internal/errors"
)

// zipMagic starts every .xlsx file
var zipMagic = []byte("PK\x03\x04")

// FileValidator checks workbook inputs and artifact outputs before the
// tools touch them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateFile checks that path is an existing, readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.NewValidationError(fmt.Sprintf("file %s does not exist", path), err)
	}
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewValidationError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("file %s is not readable", path), err)
	}
	f.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateWorkbook checks that path looks like an OMIE .xlsx workbook:
// the extension, no Excel lock file, and the zip container signature.
// Legacy .xls files are rejected; the parser reads Office Open XML only.
func (v *FileValidator) ValidateWorkbook(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" {
		return apperrors.NewValidationError(fmt.Sprintf("file %s is not an .xlsx workbook (extension: %s)", path, ext), nil)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewValidationError(fmt.Sprintf("file %s is an Excel lock file", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("file %s is not readable", path), err)
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, zipMagic) {
		v.logger.Warn("Workbook is not a zip container", slog.String("file", path))
		return apperrors.NewValidationError(fmt.Sprintf("file %s is not a valid workbook", path), err)
	}
	return nil
}

// ValidateOutputDirectory ensures dir exists and accepts new files
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}
