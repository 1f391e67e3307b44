// Package persistence stores data that must survive restarts.
//
// Cache keeps the last descriptor document seen from each device in SQLite,
// keyed by device identity, so a controller can report new and changed
// devices after a discovery round. StateStore keeps the runtime state of a
// device in a JSON file.
package persistence
