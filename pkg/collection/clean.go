package collection

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// FullClean validates the bound data once. Later calls are no-ops.
func (c *FormCollection) FullClean(ctx context.Context) {
	if c == nil || c.cleaned {
		return
	}
	c.cleaned = true
	c.valid = make(map[holder.Holder]bool)
	if !c.HasMany() {
		c.errors = ErrorMap{}
		if c.isBound {
			c.cleanSingle(ctx)
		}
		return
	}
	c.errors = ErrorSeq{}
	if c.isBound {
		c.cleanMany(ctx)
		c.validateUnique()
	}
}

func (c *FormCollection) cleanSingle(ctx context.Context) {
	data, _ := c.data.(map[string]any)
	errs := ErrorMap{}
	c.errors = errs
	sibling := &Sibling{}
	c.siblings = []*Sibling{sibling}

	instance, err := c.retriever.Retrieve(ctx, data, c.instance)
	if err != nil {
		c.log().Error("retrieve instance failed", zap.Error(err))
		errs[form.NonFieldErrors] = retrievalError()
		return
	}
	sibling.Instance = instance

	for _, decl := range c.declared {
		sub, ok := data[decl.Name]
		if !ok {
			errs[decl.Name] = form.MissingDataError()
			continue
		}
		replica := c.bindMember(ctx, decl, c.childPrefix(decl.Name), sub, instance, func(state *holder.State) bool {
			state.IsSingle = true
			return true
		})
		errs[decl.Name] = replica.Errors()
		sibling.Members = append(sibling.Members, Member{Name: decl.Name, Holder: replica, Valid: c.valid[replica]})
	}
}

func (c *FormCollection) cleanMany(ctx context.Context) {
	entries, ok := asSequence(c.data)
	if !ok {
		c.errors = ErrorSeq{collectionError(form.CodeInvalid, "Form data is malformed.")}
		return
	}
	errs := ErrorSeq{}
	log := c.log()

siblings:
	for position, raw := range entries {
		if raw == nil {
			errs = append(errs, nil)
			continue
		}
		data, _ := raw.(map[string]any)
		sibErrs := ErrorMap{}
		instance, err := c.retriever.Retrieve(ctx, data, c.instance)
		if err != nil {
			log.Error("retrieve sibling instance failed", zap.Int("sibling", position), zap.Error(err))
			sibErrs[form.NonFieldErrors] = retrievalError()
			errs = append(errs, sibErrs)
			continue
		}

		sibling := &Sibling{Position: position, Instance: instance}
		siblingMarked := holder.IsMarkedForRemoval(data)
		complete := true
		for _, decl := range c.declared {
			sub, ok := data[decl.Name]
			if !ok {
				sibErrs[decl.Name] = form.MissingDataError()
				log.Warn("sibling is missing a declared holder",
					zap.Int("sibling", position), zap.String("holder", decl.Name))
				complete = false
				break
			}
			replica := c.bindMember(ctx, decl, c.childPrefix(strconv.Itoa(position), decl.Name), sub, instance, func(state *holder.State) bool {
				state.Position = position
				if !siblingMarked && !holder.IsMarkedForRemoval(sub) {
					return true
				}
				if state.IgnoreMarkedForRemoval {
					return false
				}
				state.MarkedForRemoval = true
				return true
			})
			if replica == nil {
				log.Debug("sibling dropped, holder ignores removal markers",
					zap.Int("sibling", position), zap.String("holder", decl.Name))
				errs = append(errs, nil)
				continue siblings
			}
			sibErrs[decl.Name] = replica.Errors()
			sibling.Members = append(sibling.Members, Member{Name: decl.Name, Holder: replica, Valid: c.valid[replica]})
		}
		errs = append(errs, sibErrs)
		if complete {
			c.siblings = append(c.siblings, sibling)
		}
	}
	c.errors = errs
}

// bindMember replicates decl bound to data and validates it. prepare adjusts
// the replica state first; returning false drops the replica unvalidated.
func (c *FormCollection) bindMember(ctx context.Context, decl Declared, prefix string, data any, instance *record.Record, prepare func(*holder.State) bool) holder.Holder {
	if data == nil {
		data = map[string]any{}
	}
	opts := c.replicateOptions(prefix)
	opts.Data = data
	opts.Instance = instance
	replica := decl.Holder.Replicate(opts)
	if prepare != nil && !prepare(replica.State()) {
		return nil
	}
	c.valid[replica] = replica.IsValid(ctx)
	return replica
}

// IsValid cleans the collection if needed, checks the sibling count in many
// mode, and reports whether no errors remain anywhere in the tree.
func (c *FormCollection) IsValid(ctx context.Context) bool {
	if c == nil {
		return false
	}
	c.FullClean(ctx)
	if !c.isBound {
		return false
	}
	if c.HasMany() && !c.counted {
		c.counted = true
		c.ValidateSiblingsCount()
	}
	return !c.errors.HasErrors()
}

// ValidateSiblingsCount replaces every error of a many-mode collection with a
// single collection-level error when the number of siblings not marked for
// removal is out of bounds. The maximum is checked last and wins.
func (c *FormCollection) ValidateSiblingsCount() {
	if c == nil || !c.HasMany() || c.state.MarkedForRemoval {
		return
	}
	count := 0
	for _, sibling := range c.siblings {
		if !sibling.MarkedForRemoval() {
			count++
		}
	}
	name := c.config.DisplayName()
	if count < c.config.Min() {
		c.errors = ErrorSeq{collectionError("min_siblings", "Not enough entries in “"+name+"”, please add another.")}
	}
	if limit, ok := c.config.Max(); ok && count > limit {
		c.errors = ErrorSeq{collectionError("max_siblings", "Too many entries in “"+name+"”, please remove one.")}
	}
	c.log().Debug("sibling count checked", zap.Int("count", count))
}

// MarkedForRemoval reports whether any member of the sibling that validated
// on its own is marked.
func (s *Sibling) MarkedForRemoval() bool {
	for _, m := range s.Members {
		if m.Valid && m.Holder.State().MarkedForRemoval {
			return true
		}
	}
	return false
}

// Errors returns an ErrorMap in single mode and an ErrorSeq in many mode, nil
// before cleaning.
func (c *FormCollection) Errors() holder.ErrorTree {
	if c == nil || !c.cleaned {
		return nil
	}
	return c.errors
}

// CleanedData returns, for single mode, a mapping of holder name to cleaned
// data and, for many mode, one such mapping per sibling. Only replicas that
// validated on their own are included.
func (c *FormCollection) CleanedData() any {
	if c == nil || !c.cleaned {
		return nil
	}
	if !c.HasMany() {
		if len(c.siblings) == 0 {
			return map[string]any{}
		}
		return c.cleanedMembers(c.siblings[0])
	}
	out := make([]any, 0, len(c.siblings))
	for _, sibling := range c.siblings {
		out = append(out, c.cleanedMembers(sibling))
	}
	return out
}

func (c *FormCollection) cleanedMembers(sibling *Sibling) map[string]any {
	out := make(map[string]any, len(sibling.Members))
	for _, m := range sibling.Members {
		if c.valid[m.Holder] {
			out[m.Name] = m.Holder.CleanedData()
		}
	}
	return out
}

func retrievalError() form.ErrorList {
	return form.ErrorList{form.NewError(form.CodeInvalid, "Unable to retrieve the referenced entry.")}
}
