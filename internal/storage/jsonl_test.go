package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "plans.jsonl")
	s := NewJsonlStorage(path)

	if err := s.Put(map[string]string{"status": "success"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(map[string]string{"status": "no_route"}, map[string]string{"status": "failed"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var statuses []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		statuses = append(statuses, rec["status"])
	}
	if len(statuses) != 3 || statuses[0] != "success" || statuses[2] != "failed" {
		t.Fatalf("unexpected records: %v", statuses)
	}
}
