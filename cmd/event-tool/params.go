package main

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func sortedKeys(m map[string]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
