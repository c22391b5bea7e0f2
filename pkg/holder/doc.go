// Package holder defines the contract shared by everything a form collection
// can manage: single forms, model-bound forms and nested collections. A
// declared holder is a read-only prototype; every request works on replicas
// produced by Replicate, which own their bound data, errors and per-sibling
// state so concurrent requests never observe each other's mutations.
package holder
