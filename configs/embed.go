package configs

import "embed"

// CatalogDefaults contains the shipped default pattern catalog YAML files.
//
//go:embed catalog/*.yaml
var CatalogDefaults embed.FS
