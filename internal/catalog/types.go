package catalog

import "time"

// timeFormat is the timestamp layout the catalog accepts in filter
// parameters and resource payloads.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// Resource is the common envelope shared by every catalog collection.
type Resource struct {
	ID          string `json:"id,omitempty"`
	ResourceURI string `json:"resource_uri,omitempty"`
}

// Institution identifies a data source registered in the catalog.
type Institution struct {
	Resource
	Name string `json:"name"`
}

// DataFormat describes a file format registered in the catalog.
type DataFormat struct {
	Resource
	Name string `json:"name"`
}

// ServiceBackend identifies the storage service a data instance lives on.
type ServiceBackend struct {
	Resource
	Name string `json:"name"`
}

// ProductKey is the unique key of a product resource.
type ProductKey struct {
	Name   string
	Source string // institution resource URI
}

// Product is a logical weather model product, keyed by name and source.
type Product struct {
	Resource
	Name   string `json:"name"`
	Source string `json:"source"`
}

// ProductInstanceKey is the unique key of a product instance resource.
type ProductInstanceKey struct {
	Product       string // product resource URI
	ReferenceTime time.Time
	Version       int
}

// ProductInstance is one model run of a product.
type ProductInstance struct {
	Resource
	Product       string    `json:"product"`
	ReferenceTime time.Time `json:"reference_time"`
	Version       int       `json:"version"`
}

// DataKey is the unique key of a data resource.
type DataKey struct {
	ProductInstance string // product instance resource URI
	TimePeriodBegin time.Time
	TimePeriodEnd   time.Time
}

// Data is the time slice of a product instance that a file covers.
type Data struct {
	Resource
	ProductInstance string    `json:"productinstance"`
	TimePeriodBegin time.Time `json:"time_period_begin"`
	TimePeriodEnd   time.Time `json:"time_period_end"`
}

// DataInstance is one physical copy of a data resource: where it is served
// from, how long it lives, and how to verify it.
type DataInstance struct {
	Resource
	Data           string    `json:"data"`
	URL            string    `json:"url"`
	Expires        time.Time `json:"expires"`
	Format         string    `json:"format"`
	ServiceBackend string    `json:"servicebackend"`
	Hash           string    `json:"hash"`
	HashType       string    `json:"hash_type"`
}

// listResponse is the envelope the catalog wraps filter results in.
type listResponse[T any] struct {
	Objects []T `json:"objects"`
}
