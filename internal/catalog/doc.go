// Package catalog publishes received datasets to the remote metadata
// catalog. The catalog models a hierarchy of resource collections (product,
// product instance, data, data instance) reached over a filtered REST API;
// this package resolves or creates each level and registers the physical
// copy at the bottom.
package catalog
