// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/bonsaihq/bonsai/internal/profile"
	"github.com/bonsaihq/bonsai/store"
	"github.com/bonsaihq/bonsai/store/db/postgres"
	"github.com/bonsaihq/bonsai/store/db/sqlite"
)

// NewDBDriver creates a new DB driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
