package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mcpUser string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCPUser sets the user MCP tool calls act as. Empty means the system
// actor, which may read and write every board.
func WithMCPUser(userID string) Option {
	return func(a *application) {
		a.mcpUser = userID
	}
}
