// Package dataset models one logical unit of dissemination: a weather-model
// data file plus its md5sum sidecar. It derives pair paths from either
// member, verifies integrity by streaming-hash comparison, relocates pairs
// atomically, and parses the fixed-width dissemination filename grammar
// including year reconstruction for the year-less timestamps.
//
// For the filename format see:
// http://www.ecmwf.int/en/forecasts/documentation-and-support/data-delivery/manage-transmission-ecpds/real-time-data-file
package dataset
