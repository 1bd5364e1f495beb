package tiktok

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadSoundIDs reads seed sound ids from path. Files ending in .json hold an
// array of ids or an object with one of the keys sounds, sound_ids, soundIds
// or ids. Anything else is read as one id per line, skipping blank lines and
// lines starting with '#'. The result is deduplicated in first-seen order.
func ReadSoundIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound ids: %w", err)
	}

	var raw []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		raw, err = parseSoundIDsJSON(data)
		if err != nil {
			return nil, fmt.Errorf("read sound ids %s: %w", path, err)
		}
	} else {
		raw = parseSoundIDsText(data)
	}

	ids := dedupIDs(raw)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSoundIDs)
	}
	return ids, nil
}

var soundIDKeys = []string{"sounds", "sound_ids", "soundIds", "ids"}

func parseSoundIDsJSON(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return decodeIDList(data)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	for _, k := range soundIDKeys {
		if v, ok := obj[k]; ok {
			return decodeIDList(v)
		}
	}
	return nil, nil
}

// decodeIDList accepts strings and integers; large integers keep all digits.
func decodeIDList(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var vals []any
	if err := dec.Decode(&vals); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	ids := make([]string, 0, len(vals))
	for _, v := range vals {
		switch t := v.(type) {
		case string:
			ids = append(ids, t)
		case json.Number:
			ids = append(ids, t.String())
		}
	}
	return ids, nil
}

func parseSoundIDsText(data []byte) []string {
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids
}

func dedupIDs(raw []string) []string {
	var ids []string
	seen := make(map[string]bool, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
