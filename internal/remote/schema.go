package remote

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nao1215/caiber/internal/pipeline"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compiledSchemas map[pipeline.StageID]*gojsonschema.Schema
	compileOnce     sync.Once
	compileErr      error
)

// getSchemas compiles the response schema of every default stage once.
func getSchemas() (map[pipeline.StageID]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled := make(map[pipeline.StageID]*gojsonschema.Schema)
		for _, def := range pipeline.DefaultDefinitions() {
			data, err := schemaFS.ReadFile("schemas/" + string(def.ID) + ".json")
			if err != nil {
				compileErr = fmt.Errorf("reading schema for %s: %w", def.ID, err)
				return
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			if err != nil {
				compileErr = fmt.Errorf("compiling schema for %s: %w", def.ID, err)
				return
			}
			compiled[def.ID] = schema
		}
		compiledSchemas = compiled
	})
	return compiledSchemas, compileErr
}

// validateResponse checks body against the schema of stage. The returned
// error lists every violation.
func validateResponse(stage pipeline.StageID, body []byte) error {
	schemas, err := getSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[stage]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errors.New("response does not match schema: " + strings.Join(errs, "; "))
}
