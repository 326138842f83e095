package database

import (
	"fmt"

	"github.com/bitfantasy/nimo-trade/internal/config"
	"github.com/bitfantasy/nimo-trade/internal/export/entity"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 连接 postgres；唯一索引冲突转换为 gorm.ErrDuplicatedKey
func Open(cfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	level := logger.Warn
	if mode == "debug" {
		level = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// Migrate 按配置执行表结构迁移
func Migrate(db *gorm.DB, cfg config.DatabaseConfig, log *zap.Logger) error {
	if !cfg.AutoMigrate {
		log.Info("auto migrate disabled")
		return nil
	}
	if err := entity.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("database schema migrated")
	return nil
}
