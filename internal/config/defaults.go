package config

const (
	defaultStorageDir             = "~/.local/share/snapsheet/upload"
	defaultLogDir                 = "~/.local/share/snapsheet/logs"
	defaultAPIBind                = "127.0.0.1:8080"
	defaultGeneratorCommand       = "python3"
	defaultGeneratorTimeoutSec    = 120
	defaultGeneratorMaxConcurrent = 4
	defaultRetentionMaxAgeMin     = 60
	defaultSweepIntervalMin       = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Generator: Generator{
			Command:        defaultGeneratorCommand,
			TimeoutSeconds: defaultGeneratorTimeoutSec,
			MaxConcurrent:  defaultGeneratorMaxConcurrent,
		},
		Retention: Retention{
			MaxAgeMinutes:        defaultRetentionMaxAgeMin,
			SweepIntervalMinutes: defaultSweepIntervalMin,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
