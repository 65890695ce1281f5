package ladder

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Default stage pools for the striking and counterpick phases.
var (
	DefaultStarterStages = []string{
		"Battlefield",
		"Final Destination",
		"Small Battlefield",
		"Town and City",
		"Hollow Bastion",
	}

	DefaultCounterpickStages = []string{
		"Pokémon Stadium 2",
		"Smashville",
		"Kalos Pokémon League",
	}
)

// DefaultFighters is the built-in roster used when no roster file is
// configured.
var DefaultFighters = []string{
	"Mario", "Donkey Kong", "Link", "Samus", "Yoshi", "Kirby", "Fox",
	"Pikachu", "Luigi", "Ness", "Captain Falcon", "Jigglypuff", "Peach",
	"Bowser", "Zelda", "Sheik", "Marth", "Falco", "Ganondorf",
}

// LoadFighters reads a roster file with one fighter name per line. Blank
// lines and duplicates are dropped.
func LoadFighters(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var fighters []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fighters = append(fighters, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	if len(fighters) == 0 {
		return nil, fmt.Errorf("roster %s is empty", path)
	}
	return fighters, nil
}

func remove(pool []string, value string) []string {
	out := make([]string, 0, len(pool))
	for _, s := range pool {
		if s != value {
			out = append(out, s)
		}
	}
	return out
}
