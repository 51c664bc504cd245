package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonrepair"
)

// loadFile reads the watchlist set from a JSON file. Returns an empty set if
// the file doesn't exist. Malformed JSON (hand edits, truncated writes) is
// repaired once before giving up; repaired reports whether that happened.
func loadFile(filePath string) (set map[string][]string, repaired bool, err error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, false, nil
		}
		return nil, false, err
	}
	if len(data) == 0 {
		return map[string][]string{}, false, nil
	}

	set = map[string][]string{}
	if err := json.Unmarshal(data, &set); err == nil {
		return set, false, nil
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return nil, false, fmt.Errorf("parse %s: %w", filePath, rerr)
	}
	set = map[string][]string{}
	if err := json.Unmarshal([]byte(fixed), &set); err != nil {
		return nil, false, fmt.Errorf("parse %s after repair: %w", filePath, err)
	}
	return set, true, nil
}

// saveFile overwrites the whole file. It writes a temp file in the same
// directory and renames it over the target.
func saveFile(filePath string, set map[string][]string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".watchlist-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
