// Package form is the host form library the collection engine manages: typed
// fields with the usual required/type/length/range/pattern/step checks, forms
// that clean a bound payload into an ErrorDict plus cleaned data, and model
// forms that copy their cleaned data onto a record.Record.
//
// Forms implement holder.Holder. A form built with New is a prototype; call
// Replicate to obtain a bound copy per request.
package form
