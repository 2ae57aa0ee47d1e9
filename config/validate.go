package config

import (
	"fmt"
	"strings"

	"github.com/chararch/starbatch/file"
	"github.com/chararch/starbatch/warehouse"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is the dotted config key, e.g. "store.kind".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate checks c without modifying it.
func (c *Config) Validate() []Issue {
	var issues []Issue
	issues = append(issues, validateStore(c.Store)...)
	issues = append(issues, validateLoader(c.Loader)...)
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateDates(c.Dates)...)
	return issues
}

// Errors filters issues down to the blocking ones.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

func errorAt(path, format string, args ...interface{}) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warningAt(path, format string, args ...interface{}) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func validateStore(s Store) []Issue {
	var issues []Issue
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	known := false
	for _, k := range knownStores {
		if k == kind {
			known = true
		}
	}
	if !known {
		return append(issues, errorAt("store.kind", "unknown store kind %q, expected one of %v", s.Kind, strings.Join(knownStores, ", ")))
	}
	if strings.TrimSpace(s.Database) == "" {
		issues = append(issues, errorAt("store.database", "database must not be empty"))
	}
	if kind == "sqlite" {
		return issues
	}
	if strings.TrimSpace(s.Host) == "" {
		issues = append(issues, errorAt("store.host", "host must not be empty for %v", kind))
	}
	if s.Port < 0 || s.Port > 65535 {
		issues = append(issues, errorAt("store.port", "port %d out of range", s.Port))
	}
	if s.Password == "" {
		issues = append(issues, warningAt("store.password", "no password set"))
	}
	return issues
}

func validateLoader(l Loader) []Issue {
	var issues []Issue
	if l.MaxWorkers <= 0 {
		issues = append(issues, errorAt("loader.max_workers", "max_workers must be > 0, got %d", l.MaxWorkers))
	} else if l.MaxWorkers > 64 {
		issues = append(issues, warningAt("loader.max_workers", "%d workers each hold a store connection", l.MaxWorkers))
	}
	for name, n := range l.BatchSize {
		path := "loader.batch_size." + name
		if _, err := warehouse.ParseTable(name); err != nil {
			issues = append(issues, errorAt(path, "unknown table %q", name))
			continue
		}
		if n <= 0 {
			issues = append(issues, errorAt(path, "batch size must be > 0, got %d", n))
		}
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	for _, p := range []struct{ path, value string }{
		{"source.customer", s.Customer},
		{"source.product", s.Product},
		{"source.transaction", s.Transaction},
	} {
		if strings.TrimSpace(p.value) == "" {
			issues = append(issues, errorAt(p.path, "extract path must not be empty"))
		}
	}
	if file.GetDatasetReader(s.Type) == nil {
		issues = append(issues, errorAt("source.type", "unknown file type %q", s.Type))
	}
	if _, err := file.GetChecksumer(s.Checksum); err != nil {
		issues = append(issues, errorAt("source.checksum", "%v", err))
	}
	switch strings.ToLower(s.Storage) {
	case "", file.LocalFileStorage:
	case file.FTPFileStorage:
		if strings.TrimSpace(s.FTP.Host) == "" {
			issues = append(issues, errorAt("source.ftp.host", "ftp storage requires a host"))
		}
		if s.FTP.User == "" {
			issues = append(issues, warningAt("source.ftp.user", "no ftp user set"))
		}
	case file.S3FileStorage:
		if strings.TrimSpace(s.S3.Bucket) == "" {
			issues = append(issues, errorAt("source.s3.bucket", "s3 storage requires a bucket"))
		}
	default:
		issues = append(issues, errorAt("source.storage", "unknown storage %q, expected local, ftp or s3", s.Storage))
	}
	return issues
}

func validateDates(d Dates) []Issue {
	start, end, err := d.Range()
	if err != nil {
		path := "dates.start"
		if strings.HasPrefix(err.Error(), "dates.end") {
			path = "dates.end"
		}
		return []Issue{errorAt(path, "expected yyyy-mm-dd: %v", err)}
	}
	if end.Before(start) {
		return []Issue{errorAt("dates.end", "end %v is before start %v", d.End, d.Start)}
	}
	return nil
}
