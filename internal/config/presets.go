package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a named, reusable search configuration stored on disk. Only the
// commonly varied request fields are persisted; everything else keeps its
// zero value and can still be overridden by CLI flags.
type Preset struct {
	SearchFor         string `yaml:"searchfor"`
	ReplaceWith       string `yaml:"replacewith,omitempty"`
	UseRegex          bool   `yaml:"regex,omitempty"`
	CaseSensitive     bool   `yaml:"casesensitive,omitempty"`
	DotMatchesNewline bool   `yaml:"dotmatchnewline,omitempty"`
	WholeWords        bool   `yaml:"wholewords,omitempty"`
	FileMatch         string `yaml:"filematch,omitempty"`
	FileMatchRegex    bool   `yaml:"filematchregex,omitempty"`
	ExcludeDirs       string `yaml:"excludedirs,omitempty"`
	IncludeSubfolders *bool  `yaml:"includesubfolders,omitempty"`
	IncludeHidden     bool   `yaml:"includehidden,omitempty"`
	IncludeSystem     bool   `yaml:"includesystem,omitempty"`
	IncludeBinary     bool   `yaml:"includebinary,omitempty"`
	CreateBackup      bool   `yaml:"backup,omitempty"`
	KeepFileDate      bool   `yaml:"keepfiledate,omitempty"`
}

// PresetFile is the on-disk format: a flat map of preset name to preset.
type PresetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// LoadPresets reads a preset file. A missing file yields an empty set.
func LoadPresets(path string) (*PresetFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &PresetFile{Presets: map[string]Preset{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var pf PresetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse presets file: %w", err)
	}
	if pf.Presets == nil {
		pf.Presets = map[string]Preset{}
	}
	return &pf, nil
}

// Names returns the preset names in sorted order.
func (pf *PresetFile) Names() []string {
	names := make([]string, 0, len(pf.Presets))
	for name := range pf.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply copies the preset's stored fields onto a request. Fields the preset
// does not carry keep their current values, so flags parsed after the preset
// still win.
func (p Preset) Apply(req *Request) {
	req.Pattern = p.SearchFor
	if p.ReplaceWith != "" {
		req.Replacement = p.ReplaceWith
		req.Replace = true
	}
	req.UseRegex = p.UseRegex
	req.CaseSensitive = p.CaseSensitive
	req.DotMatchesNewline = p.DotMatchesNewline
	req.WholeWords = p.WholeWords
	if p.FileMatch != "" {
		if p.FileMatchRegex {
			req.NameRegex = p.FileMatch
			req.UseRegexForName = true
		} else {
			req.NamePatterns = SplitNamePatterns(p.FileMatch)
		}
	}
	req.ExcludeDirsRegex = p.ExcludeDirs
	if p.IncludeSubfolders != nil {
		req.IncludeSubfolders = *p.IncludeSubfolders
	}
	req.IncludeHidden = p.IncludeHidden
	req.IncludeSystem = p.IncludeSystem
	req.IncludeBinary = p.IncludeBinary
	req.CreateBackup = p.CreateBackup
	req.KeepFileDate = p.KeepFileDate
}

// SplitNamePatterns splits a file mask like "*.go|*.md|-*_test.go" into the
// glob pattern list the name filter evaluates.
func SplitNamePatterns(mask string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(mask); i++ {
		if i == len(mask) || mask[i] == '|' || mask[i] == ';' {
			if i > start {
				out = append(out, mask[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// ParseDate parses the date formats accepted on the command line.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD)", s)
}
