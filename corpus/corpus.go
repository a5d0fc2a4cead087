// Package corpus reads and writes corpus artifacts: ordered lists of
// question/answer records stored as JSON or YAML.
package corpus

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/faqrag/core"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported corpus format")

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads the records stored at path, preserving their order.
// Records are not validated; see core.ValidateCorpus.
func Load(path string) ([]core.Record, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	var records []core.Record
	switch f {
	case formatJSON:
		err = json.Unmarshal(data, &records)
	case formatYAML:
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

// Save writes records to path in the format implied by its extension.
func Save(path string, records []core.Record) error {
	f, err := formatFor(path)
	if err != nil {
		return err
	}
	if records == nil {
		records = []core.Record{}
	}

	var data []byte
	switch f {
	case formatJSON:
		data, err = json.MarshalIndent(records, "", "  ")
	case formatYAML:
		data, err = yaml.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Fingerprint hashes the ordered records. Reordering, editing, adding or
// removing a record changes the fingerprint.
func Fingerprint(records []core.Record) core.ID {
	h, _ := blake2b.New(8, nil)
	var length [8]byte
	for _, r := range records {
		for _, field := range []string{r.Question, r.Answer} {
			binary.LittleEndian.PutUint64(length[:], uint64(len(field)))
			h.Write(length[:])
			h.Write([]byte(field))
		}
	}
	return core.ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}
