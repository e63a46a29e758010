package config

const (
	defaultSpoolDir         = "~/.local/share/ecreceive/spool"
	defaultDestinationDir   = "~/.local/share/ecreceive/datasets"
	defaultCheckpointPath   = "~/.local/share/ecreceive/checkpoint.json"
	defaultLogDir           = "~/.local/share/ecreceive/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
	defaultDataFormat       = "GRIB"
	defaultLifetimeHours    = 24
	defaultRetryInterval    = 5
	defaultRequestTimeout   = 30
	defaultWorkerCount      = 4
	defaultResubmitDelay    = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SpoolDir:       defaultSpoolDir,
			DestinationDir: defaultDestinationDir,
			CheckpointPath: defaultCheckpointPath,
			LogDir:         defaultLogDir,
		},
		Catalog: Catalog{
			VerifySSL:      true,
			DataFormat:     defaultDataFormat,
			LifetimeHours:  defaultLifetimeHours,
			RetryInterval:  defaultRetryInterval,
			RequestTimeout: defaultRequestTimeout,
		},
		Workers: Workers{
			Count:         defaultWorkerCount,
			ResubmitDelay: defaultResubmitDelay,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
