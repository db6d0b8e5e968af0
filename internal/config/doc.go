// Package config holds caiber's runtime configuration: where the
// collaborator backend lives, how long a stage may take, how results are
// reported and archived, and which optional transports (SOCKS5 proxy,
// Valkey event channel) are enabled.
//
// Values come from three layers applied in order: built-in defaults
// (NewConfig), the YAML file found by FindConfigFile, and finally CLI flags.
// Secrets are never read from the YAML file; they come from the process
// environment, optionally populated from a .env file by LoadEnv.
package config
