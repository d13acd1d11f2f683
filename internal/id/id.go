// Package id generates the short run identifiers attached to log lines, so
// output of several watchers sharing one log sink can be told apart.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// alphabet is lower case only so ids survive case-insensitive log search.
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 10
)

// Generate creates a prefixed id, e.g. "run-4f0k2x9q1z".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
