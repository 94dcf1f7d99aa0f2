package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Validation error codes (E200-E299)
const (
	ErrCodeSchema      = "E201" // value rejected by the CUE schema
	ErrCodeRange       = "E202" // negative duration
	ErrCodeSchemaBuild = "E299" // embedded schema failed to compile
)

// ValidationError is one problem found by Validate.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem in a Config.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// document is the schema-facing view of a Config. Durations are carried as
// strings so the schema sees what a user would write.
type document struct {
	BaseURL           string          `json:"base_url"`
	RequestTimeout    string          `json:"request_timeout"`
	Contract          string          `json:"contract"`
	Provider          string          `json:"provider"`
	IdempotencyHeader bool            `json:"idempotency_header"`
	Storage           storageDocument `json:"storage"`
}

type storageDocument struct {
	Driver       string `json:"driver"`
	Path         string `json:"path"`
	RedisAddr    string `json:"redis_addr"`
	RedisPrefix  string `json:"redis_prefix"`
	CartKey      string `json:"cart_key"`
	SelectionKey string `json:"selection_key"`
	SelectionTTL string `json:"selection_ttl"`
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue values built from one context must not be used concurrently.
	schemaMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("config schema has no #Config definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks c against the embedded schema.
// Returns nil or a ValidationErrors listing every problem found.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "request_timeout", Message: "must not be negative", Code: ErrCodeRange})
	}
	if c.Storage.SelectionTTL < 0 {
		errs = append(errs, ValidationError{Field: "storage.selection_ttl", Message: "must not be negative", Code: ErrCodeRange})
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := loadSchema()
	if err != nil {
		return append(errs, ValidationError{Message: err.Error(), Code: ErrCodeSchemaBuild})
	}

	doc := document{
		BaseURL:           c.BaseURL,
		RequestTimeout:    c.RequestTimeout.String(),
		Contract:          c.Contract,
		Provider:          c.Provider,
		IdempotencyHeader: c.IdempotencyHeader,
		Storage: storageDocument{
			Driver:       c.Storage.Driver,
			Path:         c.Storage.Path,
			RedisAddr:    c.Storage.RedisAddr,
			RedisPrefix:  c.Storage.RedisPrefix,
			CartKey:      c.Storage.CartKey,
			SelectionKey: c.Storage.SelectionKey,
			SelectionTTL: c.Storage.SelectionTTL.String(),
		},
	}

	unified := def.Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			errs = append(errs, ValidationError{
				Field:   strings.Join(e.Path(), "."),
				Message: fmt.Sprintf(format, args...),
				Code:    ErrCodeSchema,
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
