package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fedsql/internal/queryir"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric           = "E001" // Generic/unknown error
	ErrCodeNotFound          = "E002" // Query file not found
	ErrCodeUnsupportedFormat = "E003" // Unknown query file extension
	ErrCodeParseFailed       = "E004" // JSON/YAML/CUE could not be parsed
	ErrCodeInvalidQuery      = "E005" // Query failed decoding or validation
	ErrCodeConfig            = "E006" // Config missing or invalid
	ErrCodeHistory           = "E007" // History database error

	ErrCodeUnsupportedOperator = "E101" // Operator has no SQL mapping
	ErrCodeInvalidExpression   = "E102" // Malformed expression node
	ErrCodeUnknownDialect      = "E103" // Dialect flag not recognised

	ErrCodeConnectionUnavailable = "E201" // No requested connection is connected
	ErrCodeAllFailed             = "E202" // Every connection failed
)

// QueryKey is the field a query may be nested under in YAML and CUE files.
const QueryKey = "query"

// LoadError represents an error that occurred while loading a query file.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadQuery reads a query file. The format follows the extension:
// .json, .yaml/.yml or .cue. YAML and CUE documents may hold the query at
// the top level or under a "query" field.
func LoadQuery(path string) (*queryir.QueryIR, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}

	var jsonData []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		jsonData = data
	case ".yaml", ".yml":
		jsonData, err = yamlToJSON(data)
	case ".cue":
		jsonData, err = cueToJSON(data, path)
	default:
		return nil, &LoadError{
			Code:    ErrCodeUnsupportedFormat,
			Message: fmt.Sprintf("unsupported query file extension %q: use .json, .yaml, .yml or .cue", ext),
		}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing %s: %v", path, err), Err: err}
	}

	q, err := queryir.Decode(jsonData)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidQuery, Message: err.Error(), Err: err}
	}
	return q, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if m, ok := doc.(map[string]any); ok {
		if nested, ok := m[QueryKey]; ok {
			doc = nested
		}
	}
	return json.Marshal(doc)
}

func cueToJSON(data []byte, path string) ([]byte, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, err
	}

	if nested := value.LookupPath(cue.ParsePath(QueryKey)); nested.Exists() {
		value = nested
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return value.MarshalJSON()
}

// errorCode maps library errors to CLI error codes.
func errorCode(err error) string {
	var loadErr *LoadError
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case queryir.IsUnsupportedOperator(err):
		return ErrCodeUnsupportedOperator
	case queryir.IsInvalidExpression(err):
		return ErrCodeInvalidExpression
	}
	var verr *queryir.ValidationError
	if errors.As(err, &verr) {
		return ErrCodeInvalidQuery
	}
	return ErrCodeGeneric
}
