// Package singer implements the output boundary of the connector: the
// SCHEMA, RECORD and STATE message stream consumed by downstream loaders,
// the catalog that selects streams and fields, and schema-driven record
// formatting and validation.
//
// Every message is one JSON object per line:
//
//	{"type":"SCHEMA","stream":"ads","schema":{...},"key_properties":["ad_id"]}
//	{"type":"RECORD","stream":"ads","record":{...},"time_extracted":"..."}
//	{"type":"STATE","value":{"bookmarks":{...}}}
package singer
