// Package normalize maps provider-specific search payloads into the canonical
// organic/local result model.
package normalize

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/bizscout/internal/types"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed payload.schema.json
var payloadSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// PayloadError is returned for payloads that do not have a recognised shape.
// Such payloads are terminal: retrying will not fix them.
type PayloadError struct {
	Message string
	Fields  []string
	Cause   error
}

func (e *PayloadError) Error() string {
	msg := "malformed provider payload: " + e.Message
	if len(e.Fields) > 0 {
		msg += " [" + strings.Join(e.Fields, "; ") + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *PayloadError) Unwrap() error {
	return e.Cause
}

// Normalize converts a provider payload for the given task type into canonical results.
func Normalize(taskType types.TaskType, body []byte) (*types.NormalizedResults, error) {
	if err := validateShape(body); err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &PayloadError{Message: "invalid JSON", Cause: err}
	}

	results := &types.NormalizedResults{
		OrganicResults:  []types.OrganicResult{},
		LocalBusinesses: []types.LocalBusiness{},
	}

	switch taskType {
	case types.TaskTypeCSESearch:
		organic, err := parseCSEItems(doc["items"])
		if err != nil {
			return nil, err
		}
		results.OrganicResults = organic
	case types.TaskTypeWebSearch, types.TaskTypeLocalSearch, types.TaskTypeMapsSearch:
		organic, err := parseOrganic(doc["organic_results"])
		if err != nil {
			return nil, err
		}
		results.OrganicResults = organic

		local, dropped, err := parseLocalResults(doc["local_results"])
		if err != nil {
			return nil, err
		}
		if len(local) == 0 && len(doc["place_results"]) > 0 {
			place, err := parseLocal(doc["place_results"], 1)
			if err != nil {
				return nil, err
			}
			if place.Name != "" {
				local = append(local, place)
			} else {
				dropped++
			}
		}
		results.LocalBusinesses = local
		results.DroppedLocal = dropped
	default:
		return nil, fmt.Errorf("cannot normalize task type %q", taskType)
	}

	return results, nil
}

func validateShape(body []byte) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("failed to load payload schema: %w", schemaErr)
	}
	if !json.Valid(body) || !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return &PayloadError{Message: "body is not a JSON object"}
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &PayloadError{Message: "schema validation failed during load", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		fields = append(fields, field+": "+desc.Description())
	}
	return &PayloadError{Message: "unexpected payload shape", Fields: fields}
}
