package config

// Option is a function that configures a Config
type Option func(*Config)

// WithServiceName sets the service name
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the deployment environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel sets the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// WithLogFormat sets the log format
func WithLogFormat(format string) Option {
	return func(c *Config) {
		c.LogFormat = format
	}
}

// WithSamplingRatio sets the sampling ratio
func WithSamplingRatio(ratio float64) Option {
	return func(c *Config) {
		c.Sampling.Ratio = ratio
	}
}

// WithExcludeNames sets the sampling exclusion patterns
func WithExcludeNames(names ...string) Option {
	return func(c *Config) {
		c.Sampling.ExcludeNames = names
	}
}

// WithDestinations replaces the configured destination list
func WithDestinations(destinations ...DestinationConfig) Option {
	return func(c *Config) {
		c.Destinations = destinations
	}
}

// WithDispatchMode sets the dispatch mode ("sync" or "async")
func WithDispatchMode(mode string) Option {
	return func(c *Config) {
		c.DispatchMode = mode
	}
}

// WithDemoServicePort sets the demo service port
func WithDemoServicePort(port string) Option {
	return func(c *Config) {
		c.DemoServicePort = port
	}
}
