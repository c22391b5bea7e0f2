// Package formset validates nested form collections and reconciles them into
// stored records.
//
// A collection is declared in Go (package collection) or loaded from a YAML
// definition (package schema). Each request binds the submitted payload to a
// replica of the prototype:
//
//	registry, err := formset.LoadDefinition(ctx, nil, schema.SourceFromFile("forms.yaml"), schema.WithStore(store))
//	proto, _ := registry.Collection("company_collection")
//	result, err := formset.Reconcile(ctx, proto, payload, store, record.New(company))
//
// Result.Mapping lists errors by dotted field path for clients that render
// them next to inputs.
package formset
