// Package replay republishes recorded sensor series over MQTT.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"iot-fusion/internal/models"
)

// Record is one recorded value of one metric
type Record struct {
	Timestamp string
	Metric    string
	Value     float64
}

// LoadRecords reads <metric>.txt for every metric in dir and returns all
// records ordered by timestamp. Each line is a JSON object mapping timestamps
// to values. Missing files and unreadable lines are skipped.
func LoadRecords(dir string) ([]Record, error) {
	var records []Record
	for _, metric := range models.Metrics {
		f, err := os.Open(filepath.Join(dir, metric+".txt"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s records: %w", metric, err)
		}
		parsed, err := parseRecords(f, metric)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s records: %w", metric, err)
		}
		records = append(records, parsed...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}

func parseRecords(r io.Reader, metric string) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(line, &entries); err != nil {
			continue
		}

		// map order is random; keep lines with several entries deterministic
		keys := make([]string, 0, len(entries))
		for ts := range entries {
			keys = append(keys, ts)
		}
		sort.Strings(keys)
		for _, ts := range keys {
			value, ok := parseValue(entries[ts])
			if !ok {
				continue
			}
			out = append(out, Record{Timestamp: ts, Metric: metric, Value: value})
		}
	}
	return out, scanner.Err()
}

func parseValue(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}
