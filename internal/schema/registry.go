// Package schema validates feed envelopes against the JSON schemas they reference.
package schema

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/shared/jsoncodec"

	"github.com/xeipuuv/gojsonschema"
)

// Registry holds compiled schemas keyed by their declared id. It is read-only
// after loading and safe for concurrent use.
type Registry struct {
	schemas map[string]*gojsonschema.Schema
	logger  *slog.Logger
}

// Load compiles every *.json document under dir.
func Load(dir string, logger *slog.Logger) (*Registry, error) {
	return LoadFS(os.DirFS(dir), logger)
}

func LoadFS(fsys fs.FS, logger *slog.Logger) (*Registry, error) {
	logger = logger.With("component", "schema_registry", "operation", "load")

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(path.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list schema files: %w", err)
	}
	sort.Strings(files)

	r := &Registry{
		schemas: make(map[string]*gojsonschema.Schema, len(files)),
		logger:  logger,
	}

	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", file, err)
		}

		id, err := schemaID(data)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", file, err)
		}

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
		}

		if _, dup := r.schemas[id]; dup {
			logger.Warn("Duplicate schema id, later file wins", "id", id, "file", file)
		}
		r.schemas[id] = compiled
		logger.Debug("Loaded schema", "id", id, "file", file)
	}

	logger.Info("Schema registry loaded", "schemas", len(r.schemas))
	return r, nil
}

func schemaID(data []byte) (string, error) {
	var doc struct {
		ID       string `json:"id"`
		SchemaID string `json:"$id"`
	}
	if err := jsoncodec.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	id := doc.ID
	if id == "" {
		id = doc.SchemaID
	}
	if id == "" {
		return "", fmt.Errorf("document has no id")
	}
	return normalize(id), nil
}

func normalize(ref string) string {
	return strings.TrimSuffix(ref, "#")
}

// Validate checks env.Raw against the schema named by env.SchemaRef.
func (r *Registry) Validate(env *event.Envelope) error {
	compiled, ok := r.schemas[normalize(env.SchemaRef)]
	if !ok {
		return errors.Validationf("no schema registered for %s", env.SchemaRef)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(env.Raw))
	if err != nil {
		return errors.WrapValidation("document could not be validated", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.Validation(strings.Join(msgs, "; "))
}

func (r *Registry) Has(ref string) bool {
	_, ok := r.schemas[normalize(ref)]
	return ok
}

func (r *Registry) Len() int { return len(r.schemas) }
