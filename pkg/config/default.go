// Package config holds the global constants shared across the buffer pool
// and the index packages.
package config

// Name of this module's CLI, shown in its REPL prompt.
const Name = "hashdb"

// Prompt printed by the CLI's REPL.
const Prompt = Name + "> "

// MaxPagesInBuffer is the maximum number of pages the buffer pool may hold
// in memory at once.
const MaxPagesInBuffer = 64

// GetPrompt returns Prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
