// Package collection implements nested form collections.
//
// A FormCollection manages a fixed, ordered set of declared holders (forms or
// other collections). In single mode it holds exactly one replica of each
// holder; in many mode (any cardinality bound configured) it holds a list of
// siblings, each a group of replicas, plus one template sibling per holder
// that clients clone to add rows.
//
// Validation runs per sibling, then across siblings (uniqueness of model
// fields), then on the sibling count. Validated trees are persisted with
// ConstructInstance, which walks forms before nested collections so children
// can link to their freshly saved parent.
package collection
