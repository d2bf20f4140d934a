package manager

import "time"

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// Config holds admission tunables shared by both managers.
type Config struct {
	MaxQueueDepth int
	MaxWait       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	return c
}
