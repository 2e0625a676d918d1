package crm

import (
	"context"
	"errors"

	"dealership-platform/internal/calls"
)

var (
	ErrNotFound     = errors.New("crm: not found")
	ErrConflict     = errors.New("crm: conflict")
	ErrInvalidInput = errors.New("crm: invalid input")
)

// Store is the persistence contract shared by the Postgres and in-memory
// repositories. Every method is a single short transaction.
type Store interface {
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (Customer, error)
	ListCustomers(ctx context.Context, f CustomerFilter) ([]Customer, error)
	UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	// ResolveOrCreateByPhone returns the customer owning phone, inserting a
	// Prospect with only the phone set when none exists.
	ResolveOrCreateByPhone(ctx context.Context, phone string) (Customer, bool, error)
	// UpdateTier sets the tier and returns the one it replaced (last write wins).
	UpdateTier(ctx context.Context, id int64, tier Tier) (Tier, error)
	ListLeadContacts(ctx context.Context, tier Tier) ([]LeadContact, error)
	// CountByTier returns the number of customers per tier. Tiers with no
	// customers are absent.
	CountByTier(ctx context.Context) (map[Tier]int, error)

	// CreateInteraction inserts the interaction and, when call is non-nil, its
	// call log in the same transaction.
	CreateInteraction(ctx context.Context, in Interaction, call *calls.CallLog) (Interaction, error)
	GetInteraction(ctx context.Context, id int64) (Interaction, error)
	ListInteractions(ctx context.Context, customerID int64) ([]Interaction, error)
	GetCallLog(ctx context.Context, interactionID int64) (calls.CallLog, error)
	// RecordAnalysis writes analysis fields only if the row has not been
	// analyzed yet. applied is false when a previous run already wrote them.
	RecordAnalysis(ctx context.Context, id int64, a Analysis) (applied bool, err error)

	CreateVehicle(ctx context.Context, v Vehicle) (Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)

	CreateDocument(ctx context.Context, d Document) (Document, error)
	ListDocuments(ctx context.Context, customerID int64) ([]Document, error)
}
