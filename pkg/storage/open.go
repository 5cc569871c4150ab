package storage

import (
	"fmt"
	"io"
	"os"
)

// Droppable is implemented by stores that can wipe all their data
type Droppable interface {
	Drop() error
}

// Backupable is implemented by stores that can dump a full copy of their data
type Backupable interface {
	Backup(w io.Writer) error
}

// Open creates the store for the named engine ("bolt" or "badger") in dataDir
func Open(engine, dataDir string) (Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	switch engine {
	case "", "bolt":
		return NewBoltStore(dataDir)
	case "badger":
		return NewBadgerStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown store engine %q", engine)
	}
}
