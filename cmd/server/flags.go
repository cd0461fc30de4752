package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/legal-consult-backend/pkg/config"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
)

// gormLogLevel is a pflag.Value for gorm's log level.
type gormLogLevel logger.LogLevel

func (l *gormLogLevel) String() string {
	switch logger.LogLevel(*l) {
	case logger.Silent:
		return "silent"
	case logger.Error:
		return "error"
	case logger.Info:
		return "info"
	}
	return "warn"
}

func (l *gormLogLevel) Set(v string) error {
	switch v {
	case "silent":
		*l = gormLogLevel(logger.Silent)
	case "error":
		*l = gormLogLevel(logger.Error)
	case "warn":
		*l = gormLogLevel(logger.Warn)
	case "info":
		*l = gormLogLevel(logger.Info)
	default:
		return fmt.Errorf("unknown gorm log level: %s", v)
	}
	return nil
}

func (l *gormLogLevel) Type() string {
	return "logLevel"
}

// DBFlags selects how the process talks to Postgres. Connection settings
// come from the environment; flags only tune logging.
type DBFlags struct {
	LogLevel gormLogLevel
}

func NewDBFlags() *DBFlags {
	return &DBFlags{LogLevel: gormLogLevel(logger.Warn)}
}

func (f *DBFlags) BindFlags(fs *pflag.FlagSet) {
	fs.Var(&f.LogLevel, "db-log-level", "GORM database log level (silent,error,warn,info)")
}

// Manager builds the connection manager for cfg.
func (f *DBFlags) Manager(cfg *config.Config) *database.Manager {
	return database.NewManager(database.Options{
		URL:            cfg.DatabaseURL,
		Name:           cfg.DatabaseName,
		MaxOpenConns:   cfg.DBMaxOpenConns,
		ConnectTimeout: cfg.DBConnTimeout,
		SocketTimeout:  cfg.DBSocketTimeout,
		LogLevel:       logger.LogLevel(f.LogLevel),
	}, log.WithField("component", "database"))
}
