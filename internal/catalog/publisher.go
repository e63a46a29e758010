package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecreceive/internal/dataset"
	"ecreceive/internal/logging"
	"ecreceive/internal/retry"
)

const checksumType = "md5"

// Retry escalation thresholds for catalog operations.
const (
	warnAfter  = 1
	errorAfter = 3
)

// Settings carries everything the publisher needs beyond the client itself.
type Settings struct {
	// PublicBaseURL is prepended to the dataset filename to form the URL
	// published in data instances.
	PublicBaseURL string

	// Source names the institution that produced the datasets.
	Source string

	// DataFormat and ServiceBackend name entities that must already exist
	// in the catalog; a missing one is a schema error.
	DataFormat     string
	ServiceBackend string

	// Lifetime is how long a published data instance stays downloadable.
	Lifetime time.Duration

	// RetryInterval is the pause between attempts of a failed catalog
	// operation.
	RetryInterval time.Duration

	// GiveUpAfter bounds attempts per operation; zero or negative retries
	// indefinitely.
	GiveUpAfter int

	// Now is the clock used for filename parsing and expiry stamps.
	// Defaults to time.Now.
	Now func() time.Time
}

// Publisher registers a validated dataset with the remote catalog, walking
// the product → product instance → data → data instance hierarchy and
// creating whatever is missing along the way.
type Publisher struct {
	client   *Client
	settings Settings
	logger   *slog.Logger
}

// NewPublisher wires a publisher to a catalog client.
func NewPublisher(client *Client, settings Settings, logger *slog.Logger) *Publisher {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Publisher{
		client:   client,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "catalog"),
	}
}

func (p *Publisher) step(ctx context.Context, name string, op func() error) error {
	return retry.Do(ctx, name, op, retry.Options{
		Interval:    p.settings.RetryInterval,
		IsRetryable: func(err error) bool { return errors.Is(err, ErrUnavailable) },
		WarnAfter:   warnAfter,
		ErrorAfter:  errorAfter,
		GiveUpAfter: p.settings.GiveUpAfter,
		Logger:      p.logger,
	})
}

// Publish registers ds with the catalog. Transient catalog failures are
// retried per step; ErrSchema and filename errors are returned to the
// caller unretried.
func (p *Publisher) Publish(ctx context.Context, ds *dataset.Dataset) error {
	components, err := ds.ParseFilename(p.settings.Now())
	if err != nil {
		return err
	}
	checksum, err := ds.ExpectedChecksum()
	if err != nil {
		return err
	}
	filename := ds.Filename()

	var product Product
	err = p.step(ctx, "resolve product", func() error {
		institution, err := p.client.InstitutionByName(ctx, p.settings.Source)
		if err != nil {
			return err
		}
		product, err = p.client.EnsureProduct(ctx, ProductKey{
			Name:   components.ProductName,
			Source: institution.ResourceURI,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", filename, err)
	}

	var instance ProductInstance
	err = p.step(ctx, "resolve product instance", func() error {
		instance, err = p.client.EnsureProductInstance(ctx, ProductInstanceKey{
			Product:       product.ResourceURI,
			ReferenceTime: components.AnalysisStart,
			Version:       components.Version,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", filename, err)
	}

	// Hour-indexed forecast convention: the data resource's time period is
	// the analysis end time on both sides.
	var data Data
	err = p.step(ctx, "resolve data", func() error {
		data, err = p.client.EnsureData(ctx, DataKey{
			ProductInstance: instance.ResourceURI,
			TimePeriodBegin: components.AnalysisEnd,
			TimePeriodEnd:   components.AnalysisEnd,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", filename, err)
	}

	err = p.step(ctx, "create data instance", func() error {
		format, err := p.client.DataFormatByName(ctx, p.settings.DataFormat)
		if err != nil {
			return err
		}
		backend, err := p.client.ServiceBackendByName(ctx, p.settings.ServiceBackend)
		if err != nil {
			return err
		}
		_, err = p.client.CreateDataInstance(ctx, DataInstance{
			Data:           data.ResourceURI,
			URL:            p.settings.PublicBaseURL + filename,
			Expires:        p.settings.Now().Add(p.settings.Lifetime),
			Format:         format.ResourceURI,
			ServiceBackend: backend.ResourceURI,
			Hash:           checksum,
			HashType:       checksumType,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", filename, err)
	}

	p.logger.Info("dataset published",
		logging.String(logging.FieldDataset, filename),
		logging.String("product", components.ProductName),
		logging.Int("version", components.Version))
	return nil
}
