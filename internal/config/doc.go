// Package config loads the application configuration from viper. Every
// key can come from the YAML config file, a TRANSLATEASSIST_ prefixed
// environment variable or one of the plain environment names the tool
// has always honoured (REQUEST_TIMEOUT_MS, GEMINI_API_KEY, ...).
package config
