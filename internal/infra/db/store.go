package db

import (
	"fmt"
	"log"

	"custodian/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting with in-memory repositories.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&EvidenceBlobModel{},
		&CustodyChainModel{},
		&CustodyEntryModel{},
		&AccessPolicyModel{},
		&AccessLogModel{},
		&AccessRecordModel{},
		&ValidationRecordModel{},
	)
}
