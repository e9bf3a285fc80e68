package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/lokma/internal/config"
)

// Config selects the dialect and pool settings. For sqlite Name is the
// database file.
type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func NewConfig(cfg config.Config) Config {
	return Config{
		Type:            strings.ToLower(strings.TrimSpace(cfg.DBType)),
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
}

func (c Config) Validate() error {
	switch c.Type {
	case "sqlite":
		return nil
	case "postgres", "mysql":
		if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%s requires DATABASE_HOST and DATABASE_NAME", c.Type)
		}
		return nil
	case "":
		return errors.New("DATABASE_TYPE is required")
	default:
		return fmt.Errorf("unsupported %s type", c.Type)
	}
}
