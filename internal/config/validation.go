package config

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/mengerdb/menger/internal/types"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the runtime configuration for required fields and valid
// values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.Store.URI == "" {
		errors = append(errors, ValidationError{Field: "store.uri", Message: "uri is required"})
	} else if !strings.HasPrefix(c.Store.URI, "sqlite://") && !strings.HasPrefix(c.Store.URI, "postgresql://") {
		errors = append(errors, ValidationError{
			Field:   "store.uri",
			Message: "uri must use the sqlite:// or postgresql:// scheme",
		})
	}

	if c.Profile.CacheRatio < 0 || c.Profile.CacheRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "profile.cache_ratio",
			Message: "cache_ratio must be between 0 and 1",
		})
	}

	if c.Profile.SyncIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "profile.sync_interval_seconds",
			Message: "sync_interval_seconds cannot be negative",
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{Field: "logging.level", Message: "level must be 'debug', 'info', 'warn', or 'error'"})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{Field: "logging.format", Message: "format must be 'json' or 'text'"})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// Validate checks a schema file against the structural invariants of §3:
// at most one Version dimension per space, well-formed dimension/measure
// declarations, and Computed measures whose arguments exist within the
// same space. Failures are reported as a *types.SchemaError wrapping the
// collected ValidationErrors (§7).
func (s *SchemaConfig) Validate() error {
	var errors ValidationErrors

	for el := s.Spaces.Front(); el != nil; el = el.Next() {
		errors = append(errors, validateSpace(el.Key, el.Value)...)
	}

	if len(errors) > 0 {
		return types.NewSchemaError("%s", errors.Error())
	}
	return nil
}

func validateSpace(name string, space SpaceConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := "spaces." + name

	if space.Dimensions == nil || space.Dimensions.Len() == 0 {
		errors = append(errors, ValidationError{Field: prefix + ".dimensions", Message: "at least one dimension is required"})
	}
	if space.Measures == nil || space.Measures.Len() == 0 {
		errors = append(errors, ValidationError{Field: prefix + ".measures", Message: "at least one measure is required"})
	}

	versionCount := 0
	if space.Dimensions != nil {
		for el := space.Dimensions.Front(); el != nil; el = el.Next() {
			errors = append(errors, validateDimension(prefix, el.Key, el.Value)...)
			if el.Value.Special == "version" {
				versionCount++
			}
		}
	}
	if versionCount > 1 {
		errors = append(errors, ValidationError{Field: prefix + ".dimensions", Message: "at most one version dimension is allowed per space"})
	}

	if space.Measures != nil {
		for el := space.Measures.Front(); el != nil; el = el.Next() {
			errors = append(errors, validateMeasure(prefix, el.Key, el.Value, space.Measures)...)
		}
	}

	return errors
}

func validateDimension(prefix, name string, d DimensionConfig) ValidationErrors {
	var errors ValidationErrors
	field := prefix + ".dimensions." + name

	switch d.Special {
	case "", "date", "version":
		// recognized
	default:
		errors = append(errors, ValidationError{Field: field + ".special", Message: "special must be '', 'date', or 'version'"})
	}

	validTypes := map[string]bool{"string": true, "int": true, "float": true}
	if d.Special == "" && !validTypes[d.Type] {
		errors = append(errors, ValidationError{Field: field + ".type", Message: "type must be 'string', 'int', or 'float'"})
	}

	switch d.Special {
	case "date":
		if d.Depth != 0 && d.Depth != 3 {
			errors = append(errors, ValidationError{Field: field + ".depth", Message: "a date dimension is fixed at depth 3"})
		}
	case "version":
		if d.Depth != 0 && d.Depth != 1 {
			errors = append(errors, ValidationError{Field: field + ".depth", Message: "a version dimension is fixed at depth 1"})
		}
	default:
		if d.Depth < 1 {
			errors = append(errors, ValidationError{Field: field + ".depth", Message: "depth must be at least 1"})
		}
		if len(d.Levels) > 0 && len(d.Levels) != d.Depth {
			errors = append(errors, ValidationError{Field: field + ".levels", Message: "levels length must equal depth"})
		}
	}

	return errors
}

func validateMeasure(prefix, name string, m MeasureConfig, all *orderedmap.OrderedMap[string, MeasureConfig]) ValidationErrors {
	var errors ValidationErrors
	field := prefix + ".measures." + name

	switch m.Kind {
	case "sum":
		if m.ValueType != "int" && m.ValueType != "float" {
			errors = append(errors, ValidationError{Field: field + ".value_type", Message: "value_type must be 'int' or 'float'"})
		}
		if len(m.Args) > 0 {
			errors = append(errors, ValidationError{Field: field + ".args", Message: "a sum measure takes no args"})
		}
	case "average":
		if len(m.Args) != 2 {
			errors = append(errors, ValidationError{Field: field + ".args", Message: "average takes exactly 2 args: total, count"})
		}
	case "difference":
		if len(m.Args) != 2 {
			errors = append(errors, ValidationError{Field: field + ".args", Message: "difference takes exactly 2 args: a, b"})
		}
	default:
		errors = append(errors, ValidationError{Field: field + ".kind", Message: "kind must be 'sum', 'average', or 'difference'"})
	}

	for _, arg := range m.Args {
		if _, ok := all.Get(arg); !ok {
			errors = append(errors, ValidationError{Field: field + ".args", Message: fmt.Sprintf("argument %q is not a measure of this space", arg)})
		}
	}

	return errors
}
