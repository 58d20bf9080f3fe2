// Package storage selects the persistence driver from configuration.
package storage

import (
	"fmt"

	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/storage/badgerdb"
	"github.com/rajkumarpandit/macrofin/internal/storage/surrealdb"
)

// NewStorageManager creates the storage manager for the configured driver.
// "surreal" targets a SurrealDB server; "badger" uses the embedded store.
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	driver := config.Storage.Driver
	if driver == "" {
		driver = "surreal"
	}

	logger.Info().Str("driver", driver).Msg("Initializing storage")

	switch driver {
	case "surreal":
		return surrealdb.NewManager(logger, config)
	case "badger":
		return badgerdb.NewManager(logger, config)
	default:
		return nil, fmt.Errorf("unknown storage driver '%s' (expected 'surreal' or 'badger')", driver)
	}
}
