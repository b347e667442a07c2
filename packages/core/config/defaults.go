package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:            30, // seconds
		MaxPoolSize:        10,
		Protocol:           ProtocolAuto,
		UserAgent:          "riva/1.2",
		HistoryPath:        "", // resolved to the user cache dir by the CLI
		RateLimit:          0,  // politeness limiter off
		EnableMetrics:      BoolPtr(true),
		StrictServerErrors: BoolPtr(false),
		EnableHistory:      BoolPtr(true),
		Verbose:            BoolPtr(false),
		NoColor:            BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.MaxPoolSize == defaults.MaxPoolSize &&
		c.Protocol == defaults.Protocol &&
		c.UserAgent == defaults.UserAgent &&
		c.HistoryPath == defaults.HistoryPath &&
		c.RateLimit == defaults.RateLimit &&
		c.GetEnableMetrics() == defaults.GetEnableMetrics() &&
		c.GetStrictServerErrors() == defaults.GetStrictServerErrors() &&
		c.GetEnableHistory() == defaults.GetEnableHistory() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
