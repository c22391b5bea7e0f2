// Package record describes the persisted rows a form collection reconciles into.
// A Meta declares the table, its columns and the unique constraints the
// collection engine must honour across siblings; a Record is a single row keyed
// by column name. Store implementations (memory, sqlstore, redisstore) live in
// sub-packages and classify driver failures into the sentinel errors declared
// here so the reconciliation walker can surface integrity problems as form
// errors instead of aborting the request.
package record
