package dataset

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ChecksumSuffix is the fixed suffix of the sidecar file carrying the MD5
// checksum of its partner data file. The transfer agent always writes the
// sidecar last, which makes it the completeness signal for the pair.
const ChecksumSuffix = ".md5"

// checksumHexLength is the exact size of a hex-encoded MD5 digest. Sidecar
// files shorter than this are rejected as truncated.
const checksumHexLength = 32

var (
	// ErrIncomplete indicates an operation that requires both files of the
	// pair to be present on disk.
	ErrIncomplete = errors.New("dataset is not complete")

	// ErrIntegrity indicates a damaged or truncated checksum sidecar.
	ErrIntegrity = errors.New("dataset integrity failure")

	// ErrInvalidFilename indicates a dataset filename that does not match the
	// fixed-width dissemination grammar.
	ErrInvalidFilename = errors.New("invalid dataset filename")
)

// Dataset represents a combination of a data file and its md5sum counterpart
// file, identified by the data file's name. The object carries no persistent
// identity; it is rebuilt from a path every time a job is processed.
type Dataset struct {
	// DataPath and ChecksumPath are always derived from each other and move
	// together.
	DataPath     string
	ChecksumPath string

	expected   string
	actual     string
	components *Components
}

// New constructs a Dataset from the full path of either member of the pair.
func New(path string) *Dataset {
	if IsChecksumPath(path) {
		return &Dataset{DataPath: strings.TrimSuffix(path, ChecksumSuffix), ChecksumPath: path}
	}
	return &Dataset{DataPath: path, ChecksumPath: path + ChecksumSuffix}
}

// IsChecksumPath reports whether path points at a checksum sidecar file.
func IsChecksumPath(path string) bool {
	return strings.HasSuffix(path, ChecksumSuffix)
}

// Filename returns the data file name, which is also the checkpoint key.
func (d *Dataset) Filename() string {
	return filepath.Base(d.DataPath)
}

// HasDataFile reports whether the data file exists on disk.
func (d *Dataset) HasDataFile() bool {
	return fileExists(d.DataPath)
}

// HasChecksumFile reports whether the checksum sidecar exists on disk.
func (d *Dataset) HasChecksumFile() bool {
	return fileExists(d.ChecksumPath)
}

// Complete reports whether both files of the pair exist on disk.
func (d *Dataset) Complete() bool {
	return d.HasDataFile() && d.HasChecksumFile()
}

// State returns a textual representation of the dataset's completeness.
func (d *Dataset) State() string {
	switch {
	case d.Complete():
		return "complete"
	case d.HasDataFile():
		return "missing md5sum"
	case d.HasChecksumFile():
		return "missing data file"
	default:
		return "missing"
	}
}

// ExpectedChecksum returns the checksum recorded in the sidecar file. The
// value is read once and cached. A sidecar shorter than the fixed digest
// length fails with ErrIntegrity.
func (d *Dataset) ExpectedChecksum() (string, error) {
	if d.expected != "" {
		return d.expected, nil
	}
	file, err := os.Open(d.ChecksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, checksumHexLength)
	if _, err := io.ReadFull(file, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("%w: checksum file %s is shorter than %d bytes", ErrIntegrity, d.ChecksumPath, checksumHexLength)
		}
		return "", fmt.Errorf("read checksum file: %w", err)
	}
	d.expected = string(buf)
	return d.expected, nil
}

// Checksum computes the MD5 digest of the data file by streaming its
// contents. The value is computed once and cached.
func (d *Dataset) Checksum() (string, error) {
	if d.actual != "" {
		return d.actual, nil
	}
	file, err := os.Open(d.DataPath)
	if err != nil {
		return "", fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash data file: %w", err)
	}
	d.actual = hex.EncodeToString(hash.Sum(nil))
	return d.actual, nil
}

// Valid reports whether the data file contents match the sidecar checksum.
func (d *Dataset) Valid() (bool, error) {
	expected, err := d.ExpectedChecksum()
	if err != nil {
		return false, err
	}
	actual, err := d.Checksum()
	if err != nil {
		return false, err
	}
	return expected == actual, nil
}

// Move relocates both files of the pair into the destination directory. The
// pair moves all-or-nothing: when the second rename fails, the first is
// rolled back, the internal paths stay unchanged, and the error is surfaced
// so the caller can retry.
func (d *Dataset) Move(destination string) error {
	if !d.Complete() {
		return fmt.Errorf("%w: cannot move %s", ErrIncomplete, d.Filename())
	}

	dataTarget := filepath.Join(destination, filepath.Base(d.DataPath))
	checksumTarget := filepath.Join(destination, filepath.Base(d.ChecksumPath))

	if err := os.Rename(d.DataPath, dataTarget); err != nil {
		return fmt.Errorf("move data file: %w", err)
	}
	if err := os.Rename(d.ChecksumPath, checksumTarget); err != nil {
		if rollbackErr := os.Rename(dataTarget, d.DataPath); rollbackErr != nil {
			return fmt.Errorf("move checksum file: %w (rolling back data file failed: %v)", err, rollbackErr)
		}
		return fmt.Errorf("move checksum file: %w", err)
	}

	d.DataPath = dataTarget
	d.ChecksumPath = checksumTarget
	return nil
}

// Delete removes both files of the pair from disk. Missing members are
// reported but do not abort removal of the other.
func (d *Dataset) Delete() error {
	var errs []error
	for _, path := range []string{d.DataPath, d.ChecksumPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String implements fmt.Stringer.
func (d *Dataset) String() string {
	return fmt.Sprintf("<Dataset at %s>", d.DataPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
