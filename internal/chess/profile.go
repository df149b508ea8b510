package chess

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownProfile = errors.New("chess: unknown analysis profile")

const DefaultProfileName = "standard"

// AnalysisProfile bundles the engine settings and search depths used for a
// review or a live analysis.
type AnalysisProfile struct {
	Name         string `yaml:"name" json:"name"`
	Threads      int    `yaml:"threads" json:"threads"`
	HashMB       int    `yaml:"hash_mb" json:"hash_mb"`
	Depth        int    `yaml:"depth" json:"depth"`
	MultiPV      int    `yaml:"multipv" json:"multipv"`
	LiveMaxDepth int    `yaml:"live_max_depth" json:"live_max_depth"`
}

var profileMu sync.RWMutex

var DefaultProfiles = map[string]AnalysisProfile{
	"quick": {
		Name:         "quick",
		Threads:      2,
		HashMB:       64,
		Depth:        12,
		MultiPV:      3,
		LiveMaxDepth: 20,
	},
	"standard": {
		Name:         "standard",
		Threads:      2,
		HashMB:       128,
		Depth:        18,
		MultiPV:      3,
		LiveMaxDepth: 30,
	},
	"deep": {
		Name:         "deep",
		Threads:      4,
		HashMB:       256,
		Depth:        24,
		MultiPV:      3,
		LiveMaxDepth: 40,
	},
}

// GetProfile looks a profile up by name; "" selects the default profile.
func GetProfile(name string) (AnalysisProfile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		name = DefaultProfileName
	case "fast":
		name = "quick"
	}
	profileMu.RLock()
	p, ok := DefaultProfiles[name]
	profileMu.RUnlock()
	if !ok {
		return AnalysisProfile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// SetProfile adds or replaces a profile after validating it.
func SetProfile(p AnalysisProfile) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if err := ValidateProfile(p); err != nil {
		return err
	}
	profileMu.Lock()
	DefaultProfiles[p.Name] = p
	profileMu.Unlock()
	return nil
}

func ProfileNames() []string {
	profileMu.RLock()
	names := make([]string, 0, len(DefaultProfiles))
	for name := range DefaultProfiles {
		names = append(names, name)
	}
	profileMu.RUnlock()
	sort.Strings(names)
	return names
}

func ValidateProfile(p AnalysisProfile) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("profile name required")
	case p.Threads <= 0:
		return fmt.Errorf("threads must be > 0: %d", p.Threads)
	case p.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", p.HashMB)
	case p.Depth <= 0:
		return fmt.Errorf("depth must be > 0: %d", p.Depth)
	case p.MultiPV < 2:
		return fmt.Errorf("multipv must be >= 2 to find a second-best line: %d", p.MultiPV)
	case p.LiveMaxDepth <= 0:
		return fmt.Errorf("live max depth must be > 0: %d", p.LiveMaxDepth)
	}
	return nil
}
