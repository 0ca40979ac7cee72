package storable

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// readHexCase parses a fixture: hex bytes with # comments. A "#!storable-tags"
// line selects Storable object numbering.
func readHexCase(t *testing.T, path string) ([]byte, []Option) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read case: %v", err)
	}

	var opts []Option
	var digits strings.Builder
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "#!storable-tags" {
			opts = append(opts, WithStorableTags())
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		digits.WriteString(strings.Join(strings.Fields(line), ""))
	}

	data, err := hex.DecodeString(digits.String())
	if err != nil {
		t.Fatalf("bad hex in %s: %v", path, err)
	}
	return data, opts
}

// TestGoldenNfreeze decodes every fixture image and compares its JSON form.
func TestGoldenNfreeze(t *testing.T) {
	casesDir := filepath.Join("testdata", "nfreeze", "cases")
	goldenDir := filepath.Join("testdata", "nfreeze", "golden")

	entries, err := os.ReadDir(goldenDir)
	if err != nil {
		t.Fatalf("failed to read golden dir: %v", err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		t.Run(name, func(t *testing.T) {
			data, opts := readHexCase(t, filepath.Join(casesDir, name+".hex"))

			wantBytes, err := os.ReadFile(filepath.Join(goldenDir, entry.Name()))
			if err != nil {
				t.Fatalf("failed to read golden: %v", err)
			}
			var want interface{}
			if err := json.Unmarshal(wantBytes, &want); err != nil {
				t.Fatalf("bad golden JSON: %v", err)
			}

			v, err := Thaw(data, opts...)
			if err != nil {
				t.Fatalf("Thaw failed: %v", err)
			}
			gotBytes, err := ToJSON(v)
			if err != nil {
				t.Fatalf("ToJSON failed: %v", err)
			}
			var got interface{}
			if err := json.Unmarshal(gotBytes, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if !reflect.DeepEqual(got, want) {
				t.Errorf("output mismatch\n  got:      %s\n  expected: %s", gotBytes, bytes.TrimSpace(wantBytes))
			}
		})
	}
}

// TestGoldenStreamed decodes all fixtures concatenated through one Decoder.
func TestGoldenStreamed(t *testing.T) {
	casesDir := filepath.Join("testdata", "nfreeze", "cases")
	entries, err := os.ReadDir(casesDir)
	if err != nil {
		t.Fatalf("failed to read cases dir: %v", err)
	}

	var all []byte
	count := 0
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".hex") {
			continue
		}
		data, opts := readHexCase(t, filepath.Join(casesDir, entry.Name()))
		if len(opts) > 0 {
			continue
		}
		all = append(all, data...)
		count++
	}

	dec := NewDecoder(bytes.NewReader(all))
	for i := 0; i < count; i++ {
		if _, err := dec.Decode(); err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
	}
	if dec.Offset() != int64(len(all)) {
		t.Errorf("offset = %d, want %d", dec.Offset(), len(all))
	}
}
