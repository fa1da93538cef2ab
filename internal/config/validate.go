package config

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ValidationError reports a configuration rejected by the schema.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n" + e.Details
}

// Validate checks c against the embedded schema and cross-field rules.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(c.schemaView())
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: strings.TrimSpace(cueerrors.Details(err, nil))}
	}

	if c.HTTP.RetryWaitMin > c.HTTP.RetryWaitMax {
		return &ValidationError{Details: fmt.Sprintf("http.retry_wait_min (%s) exceeds http.retry_wait_max (%s)",
			c.HTTP.RetryWaitMin, c.HTTP.RetryWaitMax)}
	}
	if c.TextStore == c.AudioStore {
		return &ValidationError{Details: fmt.Sprintf("text_store and audio_store must differ (both %q)", c.TextStore)}
	}
	return nil
}

// schemaView is the shape checked by #Config.
func (c *Config) schemaView() map[string]any {
	return map[string]any{
		"dir":                c.Dir,
		"blocked_timeout_ms": ms(c.BlockedTimeout),
		"poll_interval_ms":   ms(c.PollInterval),
		"busy_timeout_ms":    ms(c.BusyTimeout),
		"log_level":          strings.ToLower(c.LogLevel),
		"http": map[string]any{
			"retry_max":         c.HTTP.RetryMax,
			"retry_wait_min_ms": ms(c.HTTP.RetryWaitMin),
			"retry_wait_max_ms": ms(c.HTTP.RetryWaitMax),
			"timeout_ms":        ms(c.HTTP.Timeout),
		},
		"text_store":  c.TextStore,
		"audio_store": c.AudioStore,
		"audio_url":   c.AudioURL,
	}
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}
