package walker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/harrison/grepwin/internal/config"
)

// Filter holds the compiled attribute, name, size and date predicates for
// one run.
type Filter struct {
	req         *config.Request
	patterns    []string // lowercased glob list, '-' prefix = exclusion
	nameRegex   *regexp.Regexp
	excludeDirs *regexp.Regexp
}

// NewFilter compiles the request's name and directory exclusion patterns.
func NewFilter(req *config.Request) (*Filter, error) {
	f := &Filter{req: req}

	if req.UseRegexForName {
		if req.NameRegex != "" {
			re, err := regexp.Compile("(?i)" + req.NameRegex)
			if err != nil {
				return nil, fmt.Errorf("invalid file name pattern: %w", err)
			}
			f.nameRegex = re
		}
	} else {
		for _, p := range req.NamePatterns {
			f.patterns = append(f.patterns, strings.ToLower(p))
		}
	}

	if req.ExcludeDirsRegex != "" {
		re, err := regexp.Compile("(?i)" + req.ExcludeDirsRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude-dirs pattern: %w", err)
		}
		f.excludeDirs = re
	}

	return f, nil
}

// AllowAttributes applies the hidden/system gates.
func (f *Filter) AllowAttributes(hidden, system bool) bool {
	if hidden && !f.req.IncludeHidden {
		return false
	}
	if system && !f.req.IncludeSystem {
		return false
	}
	return true
}

// ExcludeDir reports whether recursion into a directory is suppressed. The
// exclusion regex is tried against the basename, the full path, and the
// path relative to the search root.
func (f *Filter) ExcludeDir(base, full, rel string) bool {
	if f.excludeDirs == nil {
		return false
	}
	if f.excludeDirs.MatchString(base) || f.excludeDirs.MatchString(full) {
		return true
	}
	if rel != "" && strings.ContainsRune(rel, filepath.Separator) && f.excludeDirs.MatchString(rel) {
		return true
	}
	return false
}

// MatchName applies the file name patterns to a path.
//
// In glob mode the pattern list is evaluated left to right over the
// lowercased basename: a leading '-' pattern contributes an AND-NOT term,
// other patterns contribute OR terms. The initial value is true when the
// first pattern is negative, so a pure exclusion list admits everything it
// does not name.
//
// In regex mode the expression is tried on the basename first and retried
// against the full path.
func (f *Filter) MatchName(path string) bool {
	if f.nameRegex != nil {
		base := filepath.Base(path)
		return f.nameRegex.MatchString(base) || f.nameRegex.MatchString(path)
	}
	if len(f.patterns) == 0 {
		return true
	}

	matched := strings.HasPrefix(f.patterns[0], "-")
	name := strings.ToLower(filepath.Base(path))
	for _, pattern := range f.patterns {
		if strings.HasPrefix(pattern, "-") {
			matched = matched && !wildcardMatch(pattern[1:], name)
		} else {
			matched = matched || wildcardMatch(pattern, name)
		}
	}
	return matched
}

// SizeDateOK applies the size and date predicates to a regular file.
func (f *Filter) SizeDateOK(size int64, modified time.Time) bool {
	switch f.req.SizeOp {
	case config.SizeLessThan:
		if size >= f.req.SizeBytes {
			return false
		}
	case config.SizeEqual:
		if size != f.req.SizeBytes {
			return false
		}
	case config.SizeGreaterThan:
		if size <= f.req.SizeBytes {
			return false
		}
	}

	switch f.req.DateLimit {
	case config.DateNewer:
		if modified.Before(f.req.Date1) {
			return false
		}
	case config.DateOlder:
		if modified.After(f.req.Date1) {
			return false
		}
	case config.DateBetween:
		if modified.Before(f.req.Date1) || modified.After(f.req.Date2) {
			return false
		}
	}

	return true
}
