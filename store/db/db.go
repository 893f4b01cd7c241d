// Package db selects the concrete storage driver from the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/intentd/intentd/internal/profile"
	"github.com/intentd/intentd/store"
	"github.com/intentd/intentd/store/db/postgres"
	"github.com/intentd/intentd/store/db/sqlite"
)

// NewDBDriver creates a new storage driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", profile.Driver)
	}
}
