// Package documents renders invoices, stores the files and records them
// against the customer.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"dealership-platform/internal/crm"

	"github.com/google/uuid"
)

var ErrCustomerEmailMissing = errors.New("documents: customer has no email address")

type Service struct {
	store    crm.Store
	renderer Renderer
	storage  Storage
	company  string
	gstPct   float64
	clock    func() time.Time
	log      *slog.Logger
}

type Options struct {
	CompanyName string
	GSTRatePct  float64
}

func NewService(store crm.Store, renderer Renderer, storage Storage, opts Options, log *slog.Logger) *Service {
	if opts.CompanyName == "" {
		opts.CompanyName = "Luxury Auto Group"
	}
	if opts.GSTRatePct <= 0 {
		opts.GSTRatePct = DefaultGSTRatePct
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		renderer: renderer,
		storage:  storage,
		company:  opts.CompanyName,
		gstPct:   opts.GSTRatePct,
		clock:    time.Now,
		log:      log,
	}
}

// WithClock overrides the time source used for invoice numbers and dates.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// GeneratedInvoice is the outcome of GenerateInvoice.
type GeneratedInvoice struct {
	Document crm.Document `json:"document"`
	Number   string       `json:"invoice_number"`
	Totals   Totals       `json:"totals"`
	Email    string       `json:"email"`
}

// GenerateInvoice renders and stores an invoice for one vehicle sale.
// Missing customer or vehicle is reported as crm.ErrNotFound; a customer
// without email fails with ErrCustomerEmailMissing before anything is
// rendered.
func (s *Service) GenerateInvoice(ctx context.Context, customerID, vehicleID int64) (GeneratedInvoice, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return GeneratedInvoice{}, fmt.Errorf("customer %d: %w", customerID, err)
	}
	vehicle, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return GeneratedInvoice{}, fmt.Errorf("vehicle %d: %w", vehicleID, err)
	}
	if customer.Email == "" {
		return GeneratedInvoice{}, fmt.Errorf("customer %d: %w", customerID, ErrCustomerEmailMissing)
	}

	totals, err := ComputeGST(vehicle.BasePriceMinor, s.gstPct)
	if err != nil {
		return GeneratedInvoice{}, err
	}

	now := s.clock()
	data := InvoiceData{
		Number:      InvoiceNumber(now, customerID),
		IssueDate:   IssueDate(now),
		CompanyName: s.company,
		Customer:    customer,
		Vehicle:     vehicle,
		Totals:      totals,
	}
	pdf, err := s.renderer.RenderInvoice(data)
	if err != nil {
		return GeneratedInvoice{}, err
	}

	// Same customer can be invoiced twice a day; the suffix keeps file paths unique.
	key := path.Join("invoices", fmt.Sprintf("%s_%s.pdf", data.Number, uuid.New().String()[:8]))
	locator, err := s.storage.Put(ctx, key, pdf, "application/pdf")
	if err != nil {
		return GeneratedInvoice{}, err
	}

	doc, err := s.store.CreateDocument(ctx, crm.Document{
		CustomerID: customerID,
		Type:       crm.DocumentInvoice,
		FilePath:   locator,
	})
	if err != nil {
		return GeneratedInvoice{}, err
	}

	s.log.Info("invoice generated",
		"customer_id", customerID,
		"vehicle_id", vehicleID,
		"invoice_number", data.Number,
		"file_path", locator,
	)
	return GeneratedInvoice{Document: doc, Number: data.Number, Totals: totals, Email: customer.Email}, nil
}

// Open returns the stored bytes of a document.
func (s *Service) Open(ctx context.Context, locator string) ([]byte, error) {
	return s.storage.Get(ctx, locator)
}
