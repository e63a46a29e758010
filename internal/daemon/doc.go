// Package daemon assembles and runs the ecreceive pipeline as a
// single-instance background process.
package daemon
