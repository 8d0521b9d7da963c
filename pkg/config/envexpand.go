package config

import "os"

// ExpandEnv expands $VAR / ${VAR} references in YAML content before
// parsing. Missing variables expand to empty string; validation catches
// required fields left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
