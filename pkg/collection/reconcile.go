package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
	"github.com/goliatone/go-formset/pkg/record"
)

// persistenceMessage is shown on a holder whose record the store rejected.
const persistenceMessage = "Unable to save this entry: %s."

// ConstructInstance persists the validated tree below parent. In many mode
// every sibling's model forms are saved (or deleted when marked for removal)
// before its nested collections run with the sibling's record as parent. In
// single mode nested collections receive parent unchanged and model forms are
// saved onto it.
//
// Integrity and invalid-value failures become holder errors and do not stop
// the walk; other store errors are returned.
func (c *FormCollection) ConstructInstance(ctx context.Context, store record.Store, parent *record.Record) error {
	if c == nil {
		return fmt.Errorf("collection: nil collection: %w", ErrNotValid)
	}
	if !c.IsValid(ctx) {
		return fmt.Errorf("collection: %s: %w", c.config.Name, ErrNotValid)
	}
	if store == nil {
		return fmt.Errorf("collection: %s: store is nil", c.config.Name)
	}
	log := c.log()
	log.Debug("reconcile", zap.Stringer("parent", parent), zap.Int("siblings", len(c.siblings)))
	if c.HasMany() {
		return c.constructMany(ctx, store, parent, log)
	}
	return c.constructSingle(ctx, store, parent, log)
}

func (c *FormCollection) constructMany(ctx context.Context, store record.Store, parent *record.Record, log *zap.Logger) error {
	for _, sibling := range c.siblings {
		if c.state.MarkedForRemoval || sibling.MarkedForRemoval() {
			if err := c.removeSibling(ctx, store, sibling, log); err != nil {
				return err
			}
			continue
		}
		owner := sibling.Instance
		for _, m := range sibling.Members {
			bound, ok := m.Holder.(holder.ModelBound)
			if !ok || isReconciler(m.Holder) {
				continue
			}
			bound.ApplyCleanedData()
			if c.config.RelatedField != "" && parent != nil {
				bound.Instance().Set(c.config.RelatedField, parent.PK())
			}
			saved, err := c.save(ctx, store, bound, log)
			if err != nil {
				return err
			}
			if saved && (owner == nil || sameModel(owner.Meta, bound.Meta())) {
				owner = bound.Instance()
			}
		}
		for _, m := range sibling.Members {
			r, ok := m.Holder.(holder.Reconciler)
			if !ok {
				continue
			}
			if err := r.ConstructInstance(ctx, store, owner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *FormCollection) constructSingle(ctx context.Context, store record.Store, parent *record.Record, log *zap.Logger) error {
	if len(c.siblings) == 0 {
		return nil
	}
	for _, m := range c.siblings[0].Members {
		if r, ok := m.Holder.(holder.Reconciler); ok {
			if err := r.ConstructInstance(ctx, store, parent); err != nil {
				return err
			}
			continue
		}
		bound, ok := m.Holder.(holder.ModelBound)
		if !ok {
			continue
		}
		if parent != nil && sameModel(parent.Meta, bound.Meta()) {
			bound.SetInstance(parent)
		}
		if c.state.MarkedForRemoval {
			if err := c.remove(ctx, store, bound, log); err != nil {
				return err
			}
			continue
		}
		bound.ApplyCleanedData()
		if _, err := c.save(ctx, store, bound, log); err != nil {
			return err
		}
	}
	return nil
}

// save reports whether the record was stored. Persistence failures are
// attached to the holder and swallowed.
func (c *FormCollection) save(ctx context.Context, store record.Store, bound holder.ModelBound, log *zap.Logger) (bool, error) {
	err := bound.Save(ctx, store)
	if err == nil {
		return true, nil
	}
	if !record.IsPersistenceError(err) {
		return false, fmt.Errorf("collection: %s: save %s: %w", c.config.Name, bound.Prefix(), err)
	}
	log.Warn("save rejected", zap.String("holder", bound.Prefix()), zap.Error(err))
	bound.AddError("", form.CodePersistence, fmt.Sprintf(persistenceMessage, describePersistence(err)))
	return false, nil
}

// removeSibling deletes the records of a removed sibling. Rows that nested
// collections link to a record are deleted before it, whether or not they were
// submitted, so stores without cascading deletes keep no orphans. A rejected
// nested delete keeps the record and is reported on its holder.
func (c *FormCollection) removeSibling(ctx context.Context, store record.Store, sibling *Sibling, log *zap.Logger) error {
	for _, m := range sibling.Members {
		bound, ok := m.Holder.(holder.ModelBound)
		if !ok || isReconciler(m.Holder) {
			continue
		}
		instance := bound.Instance()
		if instance == nil || instance.IsNew() {
			continue
		}
		rejected := false
		for _, n := range sibling.Members {
			nested, ok := n.Holder.(*FormCollection)
			if !ok {
				continue
			}
			err := nested.removeOwned(ctx, store, instance, log)
			if err == nil {
				continue
			}
			if !record.IsPersistenceError(err) {
				return err
			}
			log.Warn("nested delete rejected", zap.String("holder", bound.Prefix()), zap.Error(err))
			bound.AddError("", form.CodePersistence, fmt.Sprintf(persistenceMessage, describePersistence(err)))
			rejected = true
			break
		}
		if rejected {
			continue
		}
		if err := c.remove(ctx, store, bound, log); err != nil {
			return err
		}
	}
	return nil
}

// removeOwned deletes every stored row of the collection's models linked to
// owner through RelatedField, depth first.
func (c *FormCollection) removeOwned(ctx context.Context, store record.Store, owner *record.Record, log *zap.Logger) error {
	related := c.config.RelatedField
	if related == "" || owner == nil || owner.IsNew() {
		return nil
	}
	for _, decl := range c.declared {
		bound, ok := decl.Holder.(holder.ModelBound)
		if !ok || isReconciler(decl.Holder) || !referencesModel(bound.Meta(), related, owner.Meta) {
			continue
		}
		rows, err := store.List(ctx, bound.Meta())
		if err != nil {
			return fmt.Errorf("collection: %s: list %s: %w", c.config.Name, bound.Meta().Name, err)
		}
		for _, row := range rows {
			if !linkedTo(row, related, owner) {
				continue
			}
			for _, nested := range c.declared {
				child, ok := nested.Holder.(*FormCollection)
				if !ok {
					continue
				}
				if err := child.removeOwned(ctx, store, row, log); err != nil {
					return err
				}
			}
			err := store.Delete(ctx, row)
			switch {
			case err == nil, errors.Is(err, record.ErrNotFound):
				log.Debug("deleted", zap.Stringer("record", row), zap.Stringer("owner", owner))
			case record.IsPersistenceError(err):
				return err
			default:
				return fmt.Errorf("collection: %s: delete %s: %w", c.config.Name, row, err)
			}
		}
	}
	return nil
}

// referencesModel reports whether column field of meta points at target. A
// reference without a declared target is trusted.
func referencesModel(meta *record.Meta, field string, target *record.Meta) bool {
	if meta == nil || target == nil {
		return false
	}
	col, ok := meta.Column(field)
	if !ok {
		return false
	}
	return col.References == "" || col.References == target.Name
}

func (c *FormCollection) remove(ctx context.Context, store record.Store, bound holder.ModelBound, log *zap.Logger) error {
	instance := bound.Instance()
	if instance == nil || instance.IsNew() {
		return nil
	}
	err := store.Delete(ctx, instance)
	switch {
	case err == nil:
		log.Debug("deleted", zap.Stringer("record", instance))
		return nil
	case record.IsPersistenceError(err):
		log.Warn("delete rejected", zap.String("holder", bound.Prefix()), zap.Error(err))
		bound.AddError("", form.CodePersistence, fmt.Sprintf(persistenceMessage, describePersistence(err)))
		return nil
	default:
		return fmt.Errorf("collection: %s: delete %s: %w", c.config.Name, instance, err)
	}
}

func isReconciler(h holder.Holder) bool {
	_, ok := h.(holder.Reconciler)
	return ok
}

func describePersistence(err error) string {
	if errors.Is(err, record.ErrIntegrity) {
		return "it conflicts with existing data"
	}
	return "a value is invalid"
}

func sameModel(a, b *record.Meta) bool {
	return a != nil && b != nil && a.Name == b.Name
}
