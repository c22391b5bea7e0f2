package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const extensionNamespace = "x-formset"

// LintIssue is an unsupported or malformed x-formset extension.
type LintIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (i LintIssue) String() string {
	return i.Location + " -> " + i.Message
}

var (
	componentExtensions = map[string]bool{ExtensionModel: true}
	propertyExtensions  = map[string]bool{ExtensionWidget: true, ExtensionOrder: true}
)

// LintOpenAPI reports x-formset extensions on component schemas and their
// properties that FormsFromOpenAPI would ignore or misread. Issues are sorted
// by location.
func LintOpenAPI(ctx context.Context, raw []byte) ([]LintIssue, error) {
	if len(raw) == 0 {
		return nil, errors.New("schema: openapi document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if spec.Components == nil {
		return nil, nil
	}

	var issues []LintIssue
	for _, name := range sortedKeys(spec.Components.Schemas) {
		ref := spec.Components.Schemas[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		base := "components.schemas." + name
		issues = append(issues, lintExtensions(base, ref.Value.Extensions, componentExtensions)...)
		for _, prop := range sortedKeys(ref.Value.Properties) {
			child := ref.Value.Properties[prop]
			if child == nil || child.Value == nil {
				continue
			}
			issues = append(issues, lintExtensions(base+".properties."+prop, child.Value.Extensions, propertyExtensions)...)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Location == issues[j].Location {
			return issues[i].Message < issues[j].Message
		}
		return issues[i].Location < issues[j].Location
	})
	return issues, nil
}

func lintExtensions(location string, extensions map[string]any, allowed map[string]bool) []LintIssue {
	var issues []LintIssue
	for _, key := range sortedKeys(extensions) {
		if !strings.HasPrefix(key, extensionNamespace) {
			continue
		}
		if !allowed[key] {
			issues = append(issues, LintIssue{Location: location, Message: fmt.Sprintf("unsupported extension %s", key)})
			continue
		}
		value := extensions[key]
		switch key {
		case ExtensionOrder:
			if _, ok := value.(float64); !ok {
				issues = append(issues, LintIssue{Location: location, Message: fmt.Sprintf("%s must be a number, found %T", key, value)})
			}
		default:
			text, ok := value.(string)
			if !ok {
				issues = append(issues, LintIssue{Location: location, Message: fmt.Sprintf("%s must be a string, found %T", key, value)})
				continue
			}
			if strings.TrimSpace(text) == "" {
				issues = append(issues, LintIssue{Location: location, Message: fmt.Sprintf("%s is empty", key)})
			}
		}
	}
	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
