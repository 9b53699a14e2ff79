package config

// ApplicationConfiguration holds settings of the tool process.
type ApplicationConfiguration struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`
	// LogMaxSize is the size in megabytes the log file is rotated at,
	// LogMaxBackups is the number of rotated files kept. Zero values mean
	// 100 MB and all files.
	LogMaxSize    int `yaml:"LogMaxSize"`
	LogMaxBackups int `yaml:"LogMaxBackups"`
	// ClassPath is a directory with *.jar and *.zip archives, classes found
	// in streams are checked against them.
	ClassPath  string       `yaml:"ClassPath"`
	Bridge     BasicService `yaml:"Bridge"`
	Prometheus BasicService `yaml:"Prometheus"`
	Pprof      BasicService `yaml:"Pprof"`
}
