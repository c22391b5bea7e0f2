package collection

import (
	"github.com/goliatone/go-formset/pkg/form"
	"github.com/goliatone/go-formset/pkg/holder"
)

// CollectionErrorsKey holds collection-level errors such as cardinality
// violations. They replace every other error of the collection.
const CollectionErrorsKey = "_collection_errors_"

// ErrorMap holds the errors of a single-mode collection or of one sibling,
// keyed by holder name.
type ErrorMap map[string]holder.ErrorTree

// HasErrors implements holder.ErrorTree.
func (m ErrorMap) HasErrors() bool {
	for _, tree := range m {
		if tree != nil && tree.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorSeq holds the errors of a many-mode collection, indexed by submitted
// position. Gaps and dropped siblings hold nil.
type ErrorSeq []holder.ErrorTree

// HasErrors implements holder.ErrorTree.
func (s ErrorSeq) HasErrors() bool {
	for _, tree := range s {
		if tree != nil && tree.HasErrors() {
			return true
		}
	}
	return false
}

// CollectionErrors returns the collection-level messages of tree, if any.
func CollectionErrors(tree holder.ErrorTree) form.ErrorList {
	switch typed := tree.(type) {
	case ErrorMap:
		list, _ := typed[CollectionErrorsKey].(form.ErrorList)
		return list
	case ErrorSeq:
		for _, entry := range typed {
			if list := CollectionErrors(entry); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func collectionError(code, message string) ErrorMap {
	return ErrorMap{CollectionErrorsKey: form.ErrorList{form.NewError(code, message)}}
}

var (
	_ holder.ErrorTree = ErrorMap(nil)
	_ holder.ErrorTree = ErrorSeq(nil)
)
