package testsupport

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// WriteDataset writes a data file and a matching md5 sidecar into dir and
// returns the data file path.
func WriteDataset(t testing.TB, dir, name string, content []byte) string {
	t.Helper()

	sum := md5.Sum(content)
	return WriteDatasetPair(t, dir, name, content, []byte(hex.EncodeToString(sum[:])))
}

// WriteDatasetPair writes a data file and a sidecar with explicit contents,
// allowing tests to produce mismatched or truncated checksums.
func WriteDatasetPair(t testing.TB, dir, name string, content, checksum []byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	dataPath := filepath.Join(dir, name)
	if err := os.WriteFile(dataPath, content, 0o644); err != nil {
		t.Fatalf("write data file %s: %v", dataPath, err)
	}
	if err := os.WriteFile(dataPath+".md5", checksum, 0o644); err != nil {
		t.Fatalf("write checksum file %s: %v", dataPath+".md5", err)
	}
	return dataPath
}
