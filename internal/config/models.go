package config

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// StoreConfig represents the configuration for the record store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// PatternsConfig represents the configuration for the pattern library
type PatternsConfig struct {
	File string
}

// ScoringConfig represents the configuration for the scoring engine
type ScoringConfig struct {
	GlobalFloor float64
	Cotizacion  float64
	Renovacion  float64
	Endoso      float64
	Epsilon     float64
	SaturationK float64
	Workers     int
}

// NormalizeConfig represents the configuration for content normalization
type NormalizeConfig struct {
	MaxExcerpt int
}

// AttachmentConfig represents the configuration for attachment detection
type AttachmentConfig struct {
	MinImageBytes int64
}

// ArchiveConfig represents the configuration for the extraction archive
type ArchiveConfig struct {
	Dir          string
	SniffContent bool
}

// ServerConfig represents the configuration for the HTTP API
type ServerConfig struct {
	Enabled       bool
	ListenAddress string
}

// IntakeConfig represents the configuration for the SMTP intake
type IntakeConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// GetStore returns the record store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetPatterns returns the pattern library configuration
func (c *Config) GetPatterns() PatternsConfig {
	return PatternsConfig{
		File: c.GetString("patterns.file"),
	}
}

// GetScoring returns the scoring engine configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		GlobalFloor: c.GetFloat64("scoring.global_floor"),
		Cotizacion:  c.GetFloat64("scoring.thresholds.cotizacion"),
		Renovacion:  c.GetFloat64("scoring.thresholds.renovacion"),
		Endoso:      c.GetFloat64("scoring.thresholds.endoso"),
		Epsilon:     c.GetFloat64("scoring.epsilon"),
		SaturationK: c.GetFloat64("scoring.saturation_k"),
		Workers:     c.GetInt("scoring.workers"),
	}
}

// GetNormalize returns the content normalization configuration
func (c *Config) GetNormalize() NormalizeConfig {
	return NormalizeConfig{
		MaxExcerpt: c.GetInt("normalize.max_excerpt"),
	}
}

// GetAttachment returns the attachment detection configuration
func (c *Config) GetAttachment() AttachmentConfig {
	return AttachmentConfig{
		MinImageBytes: int64(c.GetInt("attachment.min_image_bytes")),
	}
}

// GetArchive returns the extraction archive configuration
func (c *Config) GetArchive() ArchiveConfig {
	return ArchiveConfig{
		Dir:          c.GetString("archive.dir"),
		SniffContent: c.GetBool("archive.sniff_content"),
	}
}

// GetServer returns the HTTP API configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Enabled:       c.GetBool("server.enabled"),
		ListenAddress: c.GetString("server.listen_address"),
	}
}

// GetIntake returns the SMTP intake configuration. The intake timeouts are
// duration strings read through GetDuration so a bad value can fail loudly.
func (c *Config) GetIntake() IntakeConfig {
	return IntakeConfig{
		Enabled:         c.GetBool("intake.enabled"),
		ListenAddress:   c.GetString("intake.listen_address"),
		Domain:          c.GetString("intake.domain"),
		MaxMessageBytes: int64(c.GetInt("intake.max_message_bytes")),
	}
}
