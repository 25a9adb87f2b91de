// Package configs provides embedded configuration templates for
// marxist-search.
//
// Templates are embedded at build time using Go's //go:embed directive, so
// they are available in every distribution (source build, binary release).
//
// The templates are used by:
//   - cmd/marxist-search/cmd/init.go → `marxist-search config init` writes
//     the user config at ~/.config/marxist-search/config.yaml
//   - cmd/marxist-search/cmd/init.go → `marxist-search init` writes the
//     project config at <data_dir>/config.yaml
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/marxist-search/config.yaml)
//  3. Project/data-dir config (<data_dir>/config.yaml)
//  4. Environment variables (MXS_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for machine-level configuration:
// embedding provider defaults and an Ollama host that apply to every data
// directory on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for a data directory's own
// config.yaml: server settings, retrieval tunables, and the feed list
// ingestion reads from.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
