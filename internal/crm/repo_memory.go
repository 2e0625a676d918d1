package crm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dealership-platform/internal/calls"
)

// MemoryRepo is an in-memory Store for tests and local runs. It enforces the
// same unique constraints as the Postgres schema.
type MemoryRepo struct {
	mu sync.Mutex

	clock func() time.Time

	nextCustomer, nextInteraction, nextCall, nextVehicle, nextDocument int64

	customers    map[int64]Customer
	interactions map[int64]Interaction
	callLogs     map[int64]calls.CallLog
	vehicles     map[int64]Vehicle
	documents    map[int64]Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		clock:        time.Now,
		customers:    map[int64]Customer{},
		interactions: map[int64]Interaction{},
		callLogs:     map[int64]calls.CallLog{},
		vehicles:     map[int64]Vehicle{},
		documents:    map[int64]Document{},
	}
}

// WithClock overrides the timestamp source; useful for staleness tests.
func (r *MemoryRepo) WithClock(clock func() time.Time) *MemoryRepo {
	r.clock = clock
	return r
}

func (r *MemoryRepo) uniqueTaken(phone, email string, except int64) bool {
	for id, c := range r.customers {
		if id == except {
			continue
		}
		if phone != "" && c.Phone == phone {
			return true
		}
		if email != "" && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createCustomerLocked(c)
}

func (r *MemoryRepo) createCustomerLocked(c Customer) (Customer, error) {
	if r.uniqueTaken(c.Phone, c.Email, 0) {
		return Customer{}, ErrConflict
	}
	if c.Tier == "" {
		c.Tier = TierProspect
	}
	r.nextCustomer++
	c.ID = r.nextCustomer
	now := r.clock().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.customers[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *MemoryRepo) ListCustomers(ctx context.Context, f CustomerFilter) ([]Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []Customer
	for _, c := range r.customers {
		if f.Tier != "" && c.Tier != f.Tier {
			continue
		}
		if search != "" {
			hay := strings.ToLower(c.FirstName + " " + c.LastName + " " + c.Email + " " + c.Phone)
			if !strings.Contains(hay, search) {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	if p.FirstName != nil {
		c.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		c.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		c.Email = strings.TrimSpace(*p.Email)
	}
	if p.Address != nil {
		c.Address = strings.TrimSpace(*p.Address)
	}
	if p.Phone != nil {
		c.Phone = strings.TrimSpace(*p.Phone)
	}
	if r.uniqueTaken(c.Phone, c.Email, id) {
		return Customer{}, ErrConflict
	}
	c.UpdatedAt = r.clock().UTC()
	r.customers[id] = c
	return c, nil
}

func (r *MemoryRepo) DeleteCustomer(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	for iid, in := range r.interactions {
		if in.CustomerID != nil && *in.CustomerID == id {
			in.CustomerID = nil
			r.interactions[iid] = in
		}
	}
	return nil
}

func (r *MemoryRepo) ResolveOrCreateByPhone(ctx context.Context, phone string) (Customer, bool, error) {
	if strings.TrimSpace(phone) == "" {
		return Customer{}, false, ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Phone == phone {
			return c, false, nil
		}
	}
	c, err := r.createCustomerLocked(Customer{Phone: phone})
	if err != nil {
		return Customer{}, false, err
	}
	return c, true, nil
}

func (r *MemoryRepo) UpdateTier(ctx context.Context, id int64, tier Tier) (Tier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return "", ErrNotFound
	}
	prev := c.Tier
	c.Tier = tier
	c.UpdatedAt = r.clock().UTC()
	r.customers[id] = c
	return prev, nil
}

func (r *MemoryRepo) CountByTier(ctx context.Context) (map[Tier]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[Tier]int{}
	for _, c := range r.customers {
		out[c.Tier]++
	}
	return out, nil
}

func (r *MemoryRepo) ListLeadContacts(ctx context.Context, tier Tier) ([]LeadContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LeadContact
	for _, c := range r.customers {
		if tier != "" && c.Tier != tier {
			continue
		}
		lc := LeadContact{Customer: c}
		if last, ok := r.latestInteractionLocked(c.ID); ok {
			ts := last.Timestamp
			lc.LastInteractionAt = &ts
			lc.LastContent = last.Content
		}
		out = append(out, lc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Customer.ID < out[j].Customer.ID })
	return out, nil
}

func (r *MemoryRepo) latestInteractionLocked(customerID int64) (Interaction, bool) {
	var best Interaction
	found := false
	for _, in := range r.interactions {
		if in.CustomerID == nil || *in.CustomerID != customerID {
			continue
		}
		if !found || in.Timestamp.After(best.Timestamp) || (in.Timestamp.Equal(best.Timestamp) && in.ID > best.ID) {
			best, found = in, true
		}
	}
	return best, found
}

func (r *MemoryRepo) CreateInteraction(ctx context.Context, in Interaction, call *calls.CallLog) (Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.CustomerID != nil {
		if _, ok := r.customers[*in.CustomerID]; !ok {
			return Interaction{}, ErrInvalidInput
		}
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = r.clock().UTC()
	}
	r.nextInteraction++
	in.ID = r.nextInteraction
	in.Summary, in.Outcome, in.Sentiment, in.LeadScoreImpact = "", "", "", nil
	r.interactions[in.ID] = in

	if call != nil {
		cl := *call
		r.nextCall++
		cl.ID = r.nextCall
		cl.InteractionID = in.ID
		r.callLogs[in.ID] = cl
	}
	return in, nil
}

func (r *MemoryRepo) GetInteraction(ctx context.Context, id int64) (Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if !ok {
		return Interaction{}, ErrNotFound
	}
	return in, nil
}

func (r *MemoryRepo) ListInteractions(ctx context.Context, customerID int64) ([]Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Interaction
	for _, in := range r.interactions {
		if in.CustomerID != nil && *in.CustomerID == customerID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (r *MemoryRepo) GetCallLog(ctx context.Context, interactionID int64) (calls.CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.callLogs[interactionID]
	if !ok {
		return calls.CallLog{}, ErrNotFound
	}
	return cl, nil
}

func (r *MemoryRepo) RecordAnalysis(ctx context.Context, id int64, a Analysis) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if !ok {
		return false, ErrNotFound
	}
	if in.Analyzed() {
		return false, nil
	}
	impact := a.LeadScoreImpact
	in.Summary, in.Outcome, in.Sentiment, in.LeadScoreImpact = a.Summary, a.Outcome, a.Sentiment, &impact
	r.interactions[id] = in
	return true, nil
}

func (r *MemoryRepo) CreateVehicle(ctx context.Context, v Vehicle) (Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextVehicle++
	v.ID = r.nextVehicle
	r.vehicles[v.ID] = v
	return v, nil
}

func (r *MemoryRepo) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepo) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Brand == out[j].Brand {
			return out[i].ModelName < out[j].ModelName
		}
		return out[i].Brand < out[j].Brand
	})
	return out, nil
}

func (r *MemoryRepo) CreateDocument(ctx context.Context, d Document) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.documents {
		if existing.FilePath == d.FilePath {
			return Document{}, ErrConflict
		}
	}
	r.nextDocument++
	d.ID = r.nextDocument
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.clock().UTC()
	}
	r.documents[d.ID] = d
	return d, nil
}

func (r *MemoryRepo) ListDocuments(ctx context.Context, customerID int64) ([]Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Document
	for _, d := range r.documents {
		if d.CustomerID == customerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
