// Package watcher turns kernel close-write notifications on the spool
// directory into a stream of dataset jobs.
package watcher
