// Package conf loads minidb's server configuration from an optional ini
// file plus command-line overrides, in the style of a MySQL-family my.ini.
package conf

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// ConfigPath holds the path of the loaded config file, or the absolute
// working directory when none is given; exported so callers (e.g. a
// diagnostics dump) can locate it.
var ConfigPath string

// CommandLineArgs are the flags parsed by cmd/minidbd's main().
type CommandLineArgs struct {
	ConfigPath string
	Port       int
	DBFile     string
	WALFile    string
}

// Cfg is the resolved server configuration.
type Cfg struct {
	Raw *ini.File

	BindAddress string
	Port        int
	DBFile      string
	WALFile     string

	BufferPoolFrames int
	LockTimeout      time.Duration
	WALCompressImages bool

	LogLevel string
	LogError string
	LogInfos string
}

// NewCfg returns a Cfg populated with the engine's defaults.
func NewCfg() *Cfg {
	return &Cfg{
		Raw:              ini.Empty(),
		BindAddress:      "127.0.0.1",
		Port:             5432,
		DBFile:           "minidb.dat",
		WALFile:          "minidb.wal",
		BufferPoolFrames: 100,
		LockTimeout:      60 * time.Second,
		LogLevel:         "info",
	}
}

// Load resolves config file values (if a path was given) then applies the
// command-line overrides on top, matching the precedence order the
// teacher's server used for its own my.ini-backed config.
func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	ConfigPath, _ = filepath.Abs(".")
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		if iniFile, err := ini.Load(args.ConfigPath); err == nil {
			cfg.Raw = iniFile
			cfg.applySection(iniFile.Section("minidb"))
		} else {
			fmt.Fprintf(os.Stderr, "minidb: ignoring unreadable config %q: %v\n", args.ConfigPath, err)
		}
	}

	if args.Port != 0 {
		cfg.Port = args.Port
	}
	if args.DBFile != "" {
		cfg.DBFile = args.DBFile
	}
	if args.WALFile != "" {
		cfg.WALFile = args.WALFile
	}
	return cfg
}

func (cfg *Cfg) applySection(section *ini.Section) {
	if section == nil {
		return
	}
	cfg.BindAddress = section.Key("bind-address").MustString(cfg.BindAddress)
	if ip := net.ParseIP(cfg.BindAddress); ip == nil {
		fmt.Fprintf(os.Stderr, "minidb: invalid bind-address %q, falling back to 127.0.0.1\n", cfg.BindAddress)
		cfg.BindAddress = "127.0.0.1"
	}
	cfg.Port = section.Key("port").MustInt(cfg.Port)
	cfg.DBFile = section.Key("db_file").MustString(cfg.DBFile)
	cfg.WALFile = section.Key("wal_file").MustString(cfg.WALFile)
	cfg.BufferPoolFrames = section.Key("buffer_pool_frames").MustInt(cfg.BufferPoolFrames)
	cfg.LockTimeout = section.Key("lock_timeout").MustDuration(cfg.LockTimeout)
	cfg.WALCompressImages = section.Key("wal_compress_images").MustBool(cfg.WALCompressImages)
	cfg.LogLevel = section.Key("log_level").MustString(cfg.LogLevel)
	cfg.LogError = section.Key("log_error").MustString(cfg.LogError)
	cfg.LogInfos = section.Key("log_infos").MustString(cfg.LogInfos)
}
