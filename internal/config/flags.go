package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagData   = flag.String("data", "", "Directory holding game data files")
	flagMap    = flag.String("map", "", "ID of the map to load")
	flagStrict = flag.Bool("strict", false, "Fail on unknown chunks and chunk size mismatches")
	flagLog    = flag.String("log", "", "Write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag command-line arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagData != "" {
		cfg.Data.BasePath = *flagData
	}
	if *flagMap != "" {
		cfg.Data.SelectedMap = *flagMap
	}
	if *flagStrict {
		cfg.Decode.Strict = true
	}
	if *flagLog != "" {
		cfg.Logging.LogFile = *flagLog
	}
}
