// Package postgres implements the account and role repositories on
// PostgreSQL through GORM.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/formwise/authcore"
)

const schemaName = "authcore"

// Connect opens a pooled GORM session and makes sure the schema exists.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: schemaName + ".",
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.WithContext(ctx).Exec(`CREATE SCHEMA IF NOT EXISTS ` + schemaName).Error; err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.SetupJoinTable(&userModel{}, "Roles", &userRoleModel{}); err != nil {
		return err
	}
	return db.WithContext(ctx).AutoMigrate(&roleModel{}, &userModel{}, &userRoleModel{})
}

// translate maps GORM errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return authcore.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return authcore.ErrDuplicate
	default:
		return err
	}
}
