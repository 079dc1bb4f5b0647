package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NamingStrategy controls how export directories are named.
type NamingStrategy int

const (
	// NameUUID uses the full export id.
	NameUUID NamingStrategy = iota
	// NameTimestamp uses 2006-01-02_1504_<short id>.
	NameTimestamp
	// NameDescriptive adds the language between the timestamp and short id.
	NameDescriptive
)

// ParseNamingStrategy maps a config value onto a strategy. Unknown values
// fall back to NameTimestamp.
func ParseNamingStrategy(s string) NamingStrategy {
	switch strings.ToLower(s) {
	case "uuid":
		return NameUUID
	case "descriptive":
		return NameDescriptive
	}
	return NameTimestamp
}

// ExportDir returns the slash-separated directory for one export relative
// to the storage root.
func ExportDir(id, label string, at time.Time, strategy NamingStrategy) string {
	shortID := id
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	stamp := at.Format("2006-01-02_1504")

	switch strategy {
	case NameTimestamp:
		return path.Join("exports", fmt.Sprintf("%s_%s", stamp, shortID))
	case NameDescriptive:
		return path.Join("exports", fmt.Sprintf("%s_%s_%s", stamp, sanitizeForFilename(label, 30), shortID))
	}
	return path.Join("exports", id)
}

var filenameReplacer = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-", ".", "-", "+", "p",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "", ",", "",
	"'", "", "!", "", "@", "", "#", "", "$", "", "%", "", "^", "",
	"&", "", "(", "", ")", "", "[", "", "]", "", "{", "", "}", "",
	";", "", "=", "",
)

// sanitizeForFilename lowercases s and keeps it safe as a path component.
func sanitizeForFilename(s string, maxLen int) string {
	s = filenameReplacer.Replace(strings.ToLower(s))
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		s = "export"
	}
	return s
}

// Manifest describes the contents of an export directory.
type Manifest struct {
	ID         string    `yaml:"id"`
	CreatedAt  time.Time `yaml:"created_at"`
	Language   string    `yaml:"language"`
	Steps      int       `yaml:"steps"`
	Complexity string    `yaml:"time_complexity,omitempty"`
	Memory     string    `yaml:"estimated_memory,omitempty"`
	Files      []string  `yaml:"files"`
}

func (m Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}
