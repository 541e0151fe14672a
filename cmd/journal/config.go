package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacentio/quill/dynamostore"
	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/keys"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "JOURNAL"

	cfgKeyConfig       = "config"
	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeyKey          = "key"
	cfgKeyJSON         = "json"
	cfgKeyLogLevel     = "log_level"
	cfgKeyRegion       = "region"
	cfgKeyProfile      = "profile"
	cfgKeyEndpoint     = "endpoint"
	cfgKeyEntryTable   = "entry_table"
	cfgKeyCounterTable = "counter_table"
	cfgKeyBalanceTable = "balance_table"
	cfgKeyRentPerByte  = "rent_per_byte"
	cfgKeyOverhead     = "account_overhead"

	backendSQLite   = "sqlite"
	backendDynamoDB = "dynamodb"
	defaultBackend  = backendSQLite
)

// bindFlags binds flags to viper keys so the precedence is
// flag > JOURNAL_* env > config file > default.
func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = a.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// loadConfig reads the config file, if any, and wires env overrides.
// A missing default config file is not an error.
func (a *app) loadConfig() error {
	v := a.v
	jc := journal.DefaultConfig()
	dc := dynamostore.DefaultConfig()
	v.SetDefault(cfgKeyEntryTable, dc.EntryTable)
	v.SetDefault(cfgKeyCounterTable, dc.CounterTable)
	v.SetDefault(cfgKeyBalanceTable, dc.BalanceTable)
	v.SetDefault(cfgKeyRentPerByte, jc.RentPerByte)
	v.SetDefault(cfgKeyOverhead, jc.AccountOverhead)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(cfgKeyConfig); path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	home, err := homeDir()
	if err != nil {
		return err
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// homeDir is the directory holding the default config, key and database.
func homeDir() (string, error) {
	p, err := keys.DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

func (a *app) journalConfig() journal.Config {
	return journal.Config{
		RentPerByte:     a.v.GetInt64(cfgKeyRentPerByte),
		AccountOverhead: a.v.GetInt64(cfgKeyOverhead),
	}
}

func (a *app) dynamoConfig() dynamostore.Config {
	return dynamostore.Config{
		EntryTable:   a.v.GetString(cfgKeyEntryTable),
		CounterTable: a.v.GetString(cfgKeyCounterTable),
		BalanceTable: a.v.GetString(cfgKeyBalanceTable),
	}
}

func (a *app) keyPath() (string, error) {
	if p := a.v.GetString(cfgKeyKey); p != "" {
		return p, nil
	}
	return keys.DefaultPath()
}

func (a *app) dataDir() (string, error) {
	if d := a.v.GetString(cfgKeyDataDir); d != "" {
		return d, nil
	}
	return homeDir()
}
