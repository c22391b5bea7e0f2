package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/internal/schemaloader"
	"github.com/goliatone/go-formset/pkg/formdata"
	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/schema"
	"github.com/goliatone/go-formset/pkg/validation"
)

// load fetches a definition document from a path or, with --allow-http, a
// URL.
func (a *app) load(ctx context.Context, location string) (schema.Document, error) {
	src, err := schema.SourceFromString(location)
	if err != nil {
		return schema.Document{}, fmt.Errorf("%w: %s", errUsage, err.Error())
	}
	if src.Kind() == schema.SourceKindURL && !a.allowHTTP {
		return schema.Document{}, fmt.Errorf("%w: %s is remote, pass --allow-http to load it", errUsage, location)
	}
	loader := schemaloader.New(schemaloader.Options{
		AllowHTTP:      a.allowHTTP,
		RequestTimeout: a.timeout,
	})
	doc, err := loader.Load(ctx, src)
	if err != nil {
		return schema.Document{}, fmt.Errorf("cli: %w", err)
	}
	return doc, nil
}

// registry loads, validates and builds a definition. openapiPath, when set,
// contributes extra forms imported from an OpenAPI document.
func (a *app) registry(ctx context.Context, location, openapiPath string, store record.Store) (*schema.Registry, error) {
	doc, err := a.load(ctx, location)
	if err != nil {
		return nil, err
	}
	def, result := validation.ValidateDocument(ctx, doc.Source(), doc.Raw())
	if def != nil && openapiPath != "" {
		forms, err := a.openapiForms(ctx, openapiPath)
		if err != nil {
			return nil, err
		}
		if skipped := def.AddForms(forms...); len(skipped) > 0 {
			a.log.Info("openapi forms shadowed by the definition", zap.Strings("forms", skipped))
		}
		result = validation.ValidateDefinition(def)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", errInvalid, doc.Location(), err.Error())
	}
	registry, err := schema.Build(def, schema.WithStore(store), schema.WithLogger(a.log))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalid, err.Error())
	}
	a.log.Debug("definition built", zap.String("location", doc.Location()), zap.Strings("collections", registry.CollectionNames()))
	return registry, nil
}

func (a *app) openapiForms(ctx context.Context, path string) ([]schema.FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read %s: %w", path, err)
	}
	forms, err := schema.FormsFromOpenAPI(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", errInvalid, path, err.Error())
	}
	return forms, nil
}

// readPayload decodes a JSON payload from path, or stdin for "-".
func readPayload(path string, stdin io.Reader) (any, error) {
	var r io.Reader
	if strings.TrimSpace(path) == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cli: open payload: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := formdata.DecodeJSON(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalid, err.Error())
	}
	return data, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(value)
}
