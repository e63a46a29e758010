// Command ecreceive runs the dissemination receiver daemon and its operator
// utilities: checkpoint inspection, spool scanning, and configuration
// management.
package main
