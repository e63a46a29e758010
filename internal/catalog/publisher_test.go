package catalog_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ecreceive/internal/catalog"
	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
	"ecreceive/internal/testsupport"
)

// fakeCatalog serves the resource collections the publisher walks. Filters
// against empty collections return no matches, so every resource is created
// exactly once per publish.
type fakeCatalog struct {
	mu               sync.Mutex
	products         []catalog.Product
	productInstances []catalog.ProductInstance
	data             []catalog.Data
	dataInstances    []catalog.DataInstance
	failuresLeft     int
}

func (f *fakeCatalog) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/institution/", func(w http.ResponseWriter, r *http.Request) {
		if f.failOnce(w) {
			return
		}
		name := r.URL.Query().Get("name")
		objects := []catalog.Institution{}
		if name == "ecmwf" {
			institution := catalog.Institution{Name: "ecmwf"}
			institution.ResourceURI = "/api/v1/institution/1/"
			objects = append(objects, institution)
		}
		writeObjects(t, w, objects)
	})
	mux.HandleFunc("/api/v1/dataformat/", func(w http.ResponseWriter, r *http.Request) {
		format := catalog.DataFormat{Name: "GRIB"}
		format.ResourceURI = "/api/v1/dataformat/1/"
		writeObjects(t, w, []catalog.DataFormat{format})
	})
	mux.HandleFunc("/api/v1/servicebackend/", func(w http.ResponseWriter, r *http.Request) {
		backend := catalog.ServiceBackend{Name: "datastore"}
		backend.ResourceURI = "/api/v1/servicebackend/1/"
		writeObjects(t, w, []catalog.ServiceBackend{backend})
	})
	mux.HandleFunc("/api/v1/product/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			writeObjects(t, w, f.products)
			return
		}
		var product catalog.Product
		decodeBody(t, r, &product)
		product.ResourceURI = "/api/v1/product/1/"
		f.products = append(f.products, product)
		writeCreated(t, w, product)
	})
	mux.HandleFunc("/api/v1/productinstance/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			writeObjects(t, w, f.productInstances)
			return
		}
		var instance catalog.ProductInstance
		decodeBody(t, r, &instance)
		instance.ResourceURI = "/api/v1/productinstance/1/"
		f.productInstances = append(f.productInstances, instance)
		writeCreated(t, w, instance)
	})
	mux.HandleFunc("/api/v1/data/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			writeObjects(t, w, f.data)
			return
		}
		var data catalog.Data
		decodeBody(t, r, &data)
		data.ResourceURI = "/api/v1/data/1/"
		f.data = append(f.data, data)
		writeCreated(t, w, data)
	})
	mux.HandleFunc("/api/v1/datainstance/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var instance catalog.DataInstance
		decodeBody(t, r, &instance)
		instance.ResourceURI = "/api/v1/datainstance/1/"
		f.dataInstances = append(f.dataInstances, instance)
		writeCreated(t, w, instance)
	})
	return mux
}

func (f *fakeCatalog) failOnce(w http.ResponseWriter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		http.Error(w, "catalog restarting", http.StatusServiceUnavailable)
		return true
	}
	return false
}

func writeObjects[T any](t *testing.T, w http.ResponseWriter, objects []T) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"objects": objects}); err != nil {
		t.Errorf("encode objects: %v", err)
	}
}

func writeCreated(t *testing.T, w http.ResponseWriter, resource any) {
	t.Helper()
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resource); err != nil {
		t.Errorf("encode created resource: %v", err)
	}
}

func decodeBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		t.Errorf("decode request body: %v", err)
	}
}

func newPublisher(t *testing.T, serverURL string, now time.Time) *catalog.Publisher {
	t.Helper()
	client := catalog.NewClient(serverURL, "ecreceive", "secret", nil)
	return catalog.NewPublisher(client, catalog.Settings{
		PublicBaseURL:  "https://datastore.example.com/",
		Source:         "ecmwf",
		DataFormat:     "GRIB",
		ServiceBackend: "datastore",
		Lifetime:       24 * time.Hour,
		RetryInterval:  time.Millisecond,
		Now:            func() time.Time { return now },
	}, logging.NewNop())
}

func TestPublishWalksResourceHierarchy(t *testing.T) {
	fake := &fakeCatalog{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	content := []byte("forecast payload")
	dir := t.TempDir()
	path := testsupport.WriteDataset(t, dir, "BFS11120600111511001", content)
	ds := dataset.New(path)

	now := time.Date(2015, 12, 1, 0, 0, 0, 0, time.UTC)
	publisher := newPublisher(t, server.URL, now)
	if err := publisher.Publish(context.Background(), ds); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fake.products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(fake.products))
	}
	product := fake.products[0]
	if product.Name != "BF" || product.Source != "/api/v1/institution/1/" {
		t.Fatalf("unexpected product %+v", product)
	}

	if len(fake.productInstances) != 1 {
		t.Fatalf("expected 1 product instance, got %d", len(fake.productInstances))
	}
	instance := fake.productInstances[0]
	wantStart := time.Date(2015, 11, 12, 6, 0, 0, 0, time.UTC)
	if !instance.ReferenceTime.Equal(wantStart) || instance.Version != 1 {
		t.Fatalf("unexpected product instance %+v", instance)
	}
	if instance.Product != "/api/v1/product/1/" {
		t.Fatalf("product instance does not reference the product: %+v", instance)
	}

	if len(fake.data) != 1 {
		t.Fatalf("expected 1 data resource, got %d", len(fake.data))
	}
	data := fake.data[0]
	wantEnd := time.Date(2015, 11, 15, 11, 0, 0, 0, time.UTC)
	if !data.TimePeriodBegin.Equal(wantEnd) || !data.TimePeriodEnd.Equal(wantEnd) {
		t.Fatalf("unexpected data time period %+v", data)
	}

	if len(fake.dataInstances) != 1 {
		t.Fatalf("expected 1 data instance, got %d", len(fake.dataInstances))
	}
	di := fake.dataInstances[0]
	if di.URL != "https://datastore.example.com/BFS11120600111511001" {
		t.Fatalf("unexpected data instance URL %q", di.URL)
	}
	if !di.Expires.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", di.Expires)
	}
	sum := md5.Sum(content)
	if di.Hash != hex.EncodeToString(sum[:]) || di.HashType != "md5" {
		t.Fatalf("unexpected checksum fields %+v", di)
	}
	if di.Format != "/api/v1/dataformat/1/" || di.ServiceBackend != "/api/v1/servicebackend/1/" {
		t.Fatalf("unexpected format or backend references %+v", di)
	}
	if di.Data != "/api/v1/data/1/" {
		t.Fatalf("data instance does not reference the data resource: %+v", di)
	}
}

func TestPublishRetriesThroughTransientOutage(t *testing.T) {
	fake := &fakeCatalog{failuresLeft: 3}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	dir := t.TempDir()
	path := testsupport.WriteDataset(t, dir, "BFS11120600111511001", []byte("payload"))
	ds := dataset.New(path)

	now := time.Date(2015, 12, 1, 0, 0, 0, 0, time.UTC)
	publisher := newPublisher(t, server.URL, now)
	if err := publisher.Publish(context.Background(), ds); err != nil {
		t.Fatalf("Publish should outlast a transient outage: %v", err)
	}
	if len(fake.dataInstances) != 1 {
		t.Fatalf("expected the publish to complete, got %d data instances", len(fake.dataInstances))
	}
}

func TestPublishSurfacesSchemaErrorWithoutRetrying(t *testing.T) {
	var institutionQueries int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		institutionQueries++
		_ = json.NewEncoder(w).Encode(map[string]any{"objects": []any{}})
	}))
	defer server.Close()

	dir := t.TempDir()
	path := testsupport.WriteDataset(t, dir, "BFS11120600111511001", []byte("payload"))
	ds := dataset.New(path)

	now := time.Date(2015, 12, 1, 0, 0, 0, 0, time.UTC)
	publisher := newPublisher(t, server.URL, now)
	err := publisher.Publish(context.Background(), ds)
	if !errors.Is(err, catalog.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if institutionQueries != 1 {
		t.Fatalf("schema errors must not be retried, saw %d queries", institutionQueries)
	}
}

func TestPublishRejectsMalformedFilename(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteDataset(t, dir, "garbage", []byte("payload"))
	ds := dataset.New(path)

	publisher := newPublisher(t, "http://127.0.0.1:0", time.Now())
	err := publisher.Publish(context.Background(), ds)
	if !errors.Is(err, dataset.ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
}
