package storage

import "fmt"

// Generation describes one on-disk schema of the saved request collection.
// Upgrade converts a decoded collection of the previous generation into this
// generation's shape. It must be total and must not fail on unexpected input.
type Generation struct {
	Version int
	Upgrade func(raw []any) []any
}

// Generations lists every schema ever written, oldest first. New code must
// keep reading all of them, so entries are only ever appended.
var Generations = []Generation{
	{
		// Saved requests without response binding
		Version: 1,
	},
	{
		// Adds lastResponse. Older records simply have none.
		Version: 2,
		Upgrade: func(raw []any) []any { return raw },
	},
}

// generationKey returns the medium key of a generation for an app namespace
func generationKey(app string, version int) string {
	return fmt.Sprintf("%s:savedRequests:v%d", app, version)
}

// GenerationKeys returns every generation key for app, oldest first
func GenerationKeys(app string) []string {
	keys := make([]string, 0, len(Generations))
	for _, g := range Generations {
		keys = append(keys, generationKey(app, g.Version))
	}
	return keys
}

// upgradeFrom runs raw through every generation after index from
func upgradeFrom(gens []Generation, from int, raw []any) []any {
	for i := from + 1; i < len(gens); i++ {
		if gens[i].Upgrade != nil {
			raw = gens[i].Upgrade(raw)
		}
	}
	return raw
}
