package config

// BuildVersion is set at build time with -ldflags "-X .../internal/config.BuildVersion=..."
var BuildVersion = "0.0.1-dev"
