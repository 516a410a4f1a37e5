package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	gauth "github.com/teemow/telecal/internal/google"
	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
)

// ErrSpreadsheetNotFound is returned when the configured spreadsheet does not
// exist or is not shared with the service account.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Config configures the booking log.
type Config struct {
	SpreadsheetID string
	WorksheetName string

	// CredentialsFile is a service-account JSON key. When empty the caller
	// must supply authentication through client options.
	CredentialsFile string

	// Header is written as the first row of a newly created worksheet.
	Header []string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client appends rows to one worksheet of one spreadsheet.
type Client struct {
	svc    *sheets.Service
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// NewClient creates a Sheets client authenticated with the service-account
// key in cfg.CredentialsFile.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.WorksheetName == "" {
		cfg.WorksheetName = "Bookings"
	}

	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheets credentials file: %w", err)
		}
		jwtConf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sheets credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithHTTPClient(jwtConf.Client(ctx))}, opts...)
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:    svc,
		cfg:    cfg,
		logger: logging.WithService(logger, instrumentation.ServiceSheets),
	}, nil
}

func (c *Client) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceSheets, op,
		attribute.String(instrumentation.SpanAttrResourceID, c.cfg.SpreadsheetID))
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.cfg.Metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceSheets, op, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}
}

// AppendRow appends values as one row after the last row of the worksheet,
// creating the worksheet first when it does not exist.
func (c *Client) AppendRow(ctx context.Context, values []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureWorksheet(ctx); err != nil {
		return err
	}

	err := c.append(ctx, values)
	if gauth.IsStatus(err, http.StatusBadRequest) {
		// The worksheet may have been removed since it was last seen.
		c.ensured = false
	}
	return err
}

func (c *Client) append(ctx context.Context, values []string) (err error) {
	ctx, done := c.observe(ctx, instrumentation.OperationAppend)
	defer func() { done(err) }()

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	_, err = c.svc.Spreadsheets.Values.Append(c.cfg.SpreadsheetID, c.a1("A1"), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return gauth.WrapAPIError(instrumentation.ServiceSheets, instrumentation.OperationAppend, err)
	}
	return nil
}

func (c *Client) ensureWorksheet(ctx context.Context) error {
	if c.ensured {
		return nil
	}

	exists, err := c.worksheetExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.addWorksheet(ctx); err != nil {
			return err
		}
	}
	c.ensured = true
	return nil
}

func (c *Client) worksheetExists(ctx context.Context) (exists bool, err error) {
	ctx, done := c.observe(ctx, instrumentation.OperationGet)
	defer func() { done(err) }()

	ss, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		err = gauth.WrapAPIError(instrumentation.ServiceSheets, instrumentation.OperationGet, err)
		if gauth.IsStatus(err, http.StatusNotFound) {
			return false, fmt.Errorf("%w: %s: %w", ErrSpreadsheetNotFound, c.cfg.SpreadsheetID, err)
		}
		return false, err
	}

	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == c.cfg.WorksheetName {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) addWorksheet(ctx context.Context) (err error) {
	ctx, done := c.observe(ctx, instrumentation.OperationAddSheet)
	defer func() { done(err) }()

	_, err = c.svc.Spreadsheets.BatchUpdate(c.cfg.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: c.cfg.WorksheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return gauth.WrapAPIError(instrumentation.ServiceSheets, instrumentation.OperationAddSheet, err)
	}

	c.logger.Info("created worksheet", slog.String("worksheet", c.cfg.WorksheetName))

	if len(c.cfg.Header) == 0 {
		return nil
	}
	header := make([]interface{}, len(c.cfg.Header))
	for i, h := range c.cfg.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, c.a1("A1"), &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return gauth.WrapAPIError(instrumentation.ServiceSheets, instrumentation.OperationAddSheet, err)
	}
	return nil
}

// a1 returns an A1 range on the configured worksheet, e.g. 'Bookings'!A1.
func (c *Client) a1(cell string) string {
	return "'" + strings.ReplaceAll(c.cfg.WorksheetName, "'", "''") + "'!" + cell
}
