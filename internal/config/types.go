package config

// Config is the root configuration of the dhcpfp tool.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Signatures SignaturesConfig `koanf:"signatures"`
	Database   DatabaseConfig   `koanf:"database"`
	Output     OutputConfig     `koanf:"output"`
	Parser     ParserConfig     `koanf:"parser"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=text json"`
	File   string `koanf:"file"` // optional, stderr when empty
}

// SignaturesConfig selects the Satori signature file. An empty path means
// the built-in database.
type SignaturesConfig struct {
	Path string `koanf:"path"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type OutputConfig struct {
	Format string `koanf:"format" validate:"oneof=table json csv"`
}

type ParserConfig struct {
	ClientOnly bool `koanf:"client_only"`
}
