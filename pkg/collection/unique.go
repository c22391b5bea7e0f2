package collection

import (
	"encoding/json"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// relatedPlaceholder stands in for the parent link, which every sibling shares
// and which is only assigned on reconciliation.
const relatedPlaceholder = "\x00related"

// validateUnique reports values that repeat across siblings for the unique
// and unique-together columns of model-bound holders. Checks are grouped by
// model, so holders backed by the same model see each other. Only replicas that
// validated on their own and are not marked for removal take part. Every
// repeat after the first occurrence gets a non-field error and loses the
// offending fields from its cleaned data.
func (c *FormCollection) validateUnique() {
	seen := make(map[string]map[string]struct{})
	related := c.config.RelatedField
	for _, sibling := range c.siblings {
		for _, m := range sibling.Members {
			bound, ok := m.Holder.(holder.ModelBound)
			if !ok || !c.valid[m.Holder] || bound.State().MarkedForRemoval {
				continue
			}
			meta := bound.Meta()
			cleaned, _ := bound.CleanedData().(map[string]any)
			for _, fields := range meta.UniqueChecks(meta.PK()) {
				if related != "" && len(fields) == 1 && fields[0] == related {
					continue
				}
				key, ok := rowKey(cleaned, fields, related)
				if !ok {
					continue
				}
				check := meta.Name + "|" + strings.Join(fields, ",")
				if seen[check] == nil {
					seen[check] = make(map[string]struct{})
				}
				if _, dup := seen[check][key]; !dup {
					seen[check][key] = struct{}{}
					continue
				}
				code := form.CodeUnique
				if len(fields) > 1 {
					code = form.CodeUniqueTogether
				}
				bound.AddError("", code, duplicateMessage(fields))
				bound.DiscardCleaned(fields...)
				c.log().Debug("duplicate sibling data",
					zap.Int("sibling", sibling.Position),
					zap.String("holder", m.Name),
					zap.Strings("fields", fields))
			}
		}
	}
}

// rowKey encodes the values of fields. ok is false when a value is missing.
func rowKey(cleaned map[string]any, fields []string, related string) (string, bool) {
	row := make([]any, len(fields))
	for i, field := range fields {
		if field == related {
			row[i] = relatedPlaceholder
			continue
		}
		value := normalizeUnique(cleaned[field])
		if value == nil {
			return "", false
		}
		row[i] = value
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// normalizeUnique reduces records to their primary key and lists to tuples.
func normalizeUnique(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case *record.Record:
		return v.PK()
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = normalizeUnique(v[i])
		}
		return out
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeUnique(rv.Index(i).Interface())
		}
		return out
	}
	return value
}

func duplicateMessage(fields []string) string {
	if len(fields) == 1 {
		return "Please correct the duplicate data for " + fields[0] + "."
	}
	return "Please correct the duplicate data for " + joinAnd(fields) + ", which must be unique."
}

func joinAnd(items []string) string {
	if len(items) < 2 {
		return strings.Join(items, "")
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
