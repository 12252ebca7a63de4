package config

// Tree defaults.
const (
	DefaultDisplayField = "name"
	DefaultPageSize     = 10
	DefaultMultiSelect  = true
	DefaultCascade      = true
)

// Import defaults.
const (
	DefaultImportMaxSize = "16MB"
)

// Server defaults.
const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
)
