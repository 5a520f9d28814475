// Package config loads, validates and hot-reloads the wellsteerd YAML
// configuration: telemetry connection settings, the WITS channel map, BHA
// geometry and fallback constants, manual-override clamp ranges, alert rules
// and the HTTP server surface.
//
// Load applies defaults for absent fields and rejects structurally invalid
// files. Watch re-loads the file on change and keeps the previous config
// when the new one fails to parse.
package config
