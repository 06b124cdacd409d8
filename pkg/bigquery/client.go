// Package bigquery wraps the BigQuery SDK for the analytics dataset: streaming
// inserts from the analytics worker and parameterised reads for the dashboards.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	pkggcp "github.com/angelmondragon/carestaff-backend/pkg/gcp"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

const lookupTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Client is bound to one dataset. Inserts are only accepted for the tables named
// in config so a typo fails loudly instead of creating streaming errors later.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]struct{}
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, ok := pkggcp.ProjectID(gcp)
	if !ok {
		return nil, errors.New("gcp project id is required")
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errors.New("bigquery dataset is required")
	}
	tables := tableSet(cfg)
	if len(tables) == 0 {
		return nil, errors.New("at least one bigquery table is required")
	}

	bq, err := bigquery.NewClient(ctx, projectID, pkggcp.ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(datasetID), tables: tables}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  c.Tables(),
		}), "bigquery client initialized")
	}
	return c, nil
}

func tableSet(cfg config.BigQueryConfig) map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range []string{cfg.DecisionsTable, cfg.ShiftEventsTable} {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Tables lists the configured table names in order.
func (c *Client) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping reads the dataset and table metadata. Every missing table is reported,
// not just the first.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	var errs error
	for _, name := range c.Tables() {
		_, err := c.dataset.Table(name).Metadata(ctx)
		errs = multierr.Append(errs, describe("table", name, err))
	}
	return errs
}

func describe(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// InsertRows streams rows into table. Row values must implement bigquery.ValueSaver
// or be structs the SDK can infer a schema for.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if _, ok := c.tables[table]; !ok {
		return fmt.Errorf("table %q is not configured", table)
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// Query runs a parameterised statement. Unqualified table names resolve against
// the client's dataset.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.bq == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.bq.Query(sql)
	q.Parameters = params
	q.DefaultProjectID = c.dataset.ProjectID
	q.DefaultDatasetID = c.dataset.DatasetID
	return q.Read(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}
