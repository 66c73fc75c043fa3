package queries

import (
	"fmt"

	"go.uber.org/zap"

	"scent-memory-network/internal/config"
	"scent-memory-network/internal/domain/network"
)

// LoadFamilyTable reads a family keyword table from a YAML, JSON or TOML
// file with a top-level "families" list.
func LoadFamilyTable(path string) (*network.FamilyTable, error) {
	var file network.FamilyTable
	if err := config.NewLoader().LoadFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to load family table: %w", err)
	}
	table, err := network.NewFamilyTable(file.Families)
	if err != nil {
		return nil, fmt.Errorf("invalid family table %s: %w", path, err)
	}
	return table, nil
}

// WatchFamilyTable loads path into registry and reloads it on every change.
// A table that fails to load is logged and the previous one stays active.
// The caller stops the returned watcher.
func WatchFamilyTable(path string, registry *network.FamilyRegistry, logger *zap.Logger) (*config.FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table, err := LoadFamilyTable(path)
	if err != nil {
		return nil, err
	}
	registry.Replace(table)

	watcher, err := config.NewFileWatcher(path, logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(changed string) {
		table, err := LoadFamilyTable(changed)
		if err != nil {
			logger.Error("Keeping previous family table", zap.Error(err))
			return
		}
		registry.Replace(table)
		logger.Info("Family table reloaded",
			zap.String("path", changed),
			zap.Int("families", len(table.Families)),
		)
	})
	watcher.Start()
	return watcher, nil
}
