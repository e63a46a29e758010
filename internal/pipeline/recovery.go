package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ecreceive/internal/checkpoint"
	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
)

// Recover replays unfinished work as synthetic jobs: every key still in the
// checkpoint, plus every sidecar sitting in the spool directory. Datasets
// appearing in both are submitted once.
func Recover(ctx context.Context, checkpoints *checkpoint.Service, spoolDir string, distributor *Distributor, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "recovery")

	keys, err := checkpoints.Keys(ctx)
	if err != nil {
		return fmt.Errorf("recovery: read checkpoint keys: %w", err)
	}
	pending := make(map[string]struct{}, len(keys))
	order := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, seen := pending[key]; !seen {
			pending[key] = struct{}{}
			order = append(order, key)
		}
	}

	sidecars, err := filepath.Glob(filepath.Join(spoolDir, "*"+dataset.ChecksumSuffix))
	if err != nil {
		return fmt.Errorf("recovery: scan %s: %w", spoolDir, err)
	}
	for _, sidecar := range sidecars {
		key := strings.TrimSuffix(filepath.Base(sidecar), dataset.ChecksumSuffix)
		if _, seen := pending[key]; !seen {
			pending[key] = struct{}{}
			order = append(order, key)
		}
	}

	for _, key := range order {
		if err := distributor.Submit(ctx, key); err != nil {
			return err
		}
	}
	logger.Info("recovery complete",
		logging.Int("checkpointed", len(keys)),
		logging.Int("spooled", len(sidecars)),
		logging.Int("submitted", len(order)))
	return nil
}
