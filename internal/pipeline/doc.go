// Package pipeline moves datasets from the spool directory to their
// destination and publishes them to the catalog. Jobs flow from the watcher
// through a fair distributor into a pool of workers, each driving a
// per-dataset state machine against the checkpoint service; a supervisor
// ties the component lifetimes together.
package pipeline
