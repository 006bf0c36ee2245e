package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// NamesFile is the file name, inside Dir(), of the item display-name overrides.
const NamesFile = "names"

// ItemNames holds display names declared by the user. Each key is an item id
// as it appears in transaction data and the value is the name shown in
// reports, e.g. "P001=Apple Juice 1L".
type ItemNames struct {
	Names map[string]string
}

// LoadItemNames reads {dir}/names and returns the parsed overrides. If the
// file does not exist, an empty set is returned without an error. Malformed
// lines are skipped.
func LoadItemNames(dir string) (*ItemNames, error) {
	cfg := &ItemNames{
		Names: make(map[string]string),
	}

	f, err := os.Open(filepath.Join(dir, NamesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		id := strings.TrimSpace(line[:idx])
		name := strings.TrimSpace(line[idx+1:])
		if id == "" || name == "" {
			continue
		}

		cfg.Names[id] = name
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Apply overlays the overrides onto names, which may be nil, and returns the
// merged map.
func (n *ItemNames) Apply(names map[string]string) map[string]string {
	out := make(map[string]string, len(names)+len(n.Names))
	for id, name := range names {
		out[id] = name
	}
	for id, name := range n.Names {
		out[id] = name
	}
	return out
}
