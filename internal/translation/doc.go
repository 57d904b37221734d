// Package translation defines the data types exchanged between the
// translation pipeline and its providers (MT candidates, LLM decisions,
// glossary hits, example sentences) together with the provider contracts
// the pipeline consumes.
package translation
