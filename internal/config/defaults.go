package config

const (
	defaultStateDir         = "~/.local/share/filesort"
	defaultLogDir           = "~/.local/share/filesort/logs"
	defaultConcurrency      = 64
	maxConcurrency          = 4096
	defaultOnCollision      = "overwrite"
	defaultProgressEvery    = 500
	defaultJournalFile      = "journal.db"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Sort: Sort{
			Concurrency:   defaultConcurrency,
			OnCollision:   defaultOnCollision,
			PreserveMode:  true,
			ProgressEvery: defaultProgressEvery,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
