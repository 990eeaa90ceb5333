// Package dip exposes the Bundestag DIP resources as typed endpoint methods
// on top of the resilient client core. Documents are returned as raw JSON;
// decoding the business objects is the caller's concern.
package dip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bundesdata/go-dip/pkg/client"
	"github.com/bundesdata/go-dip/pkg/pagination"
)

// DIP resource endpoints.
const (
	ResourcePerson              = "person"
	ResourceAktivitaet          = "aktivitaet"
	ResourceDrucksache          = "drucksache"
	ResourceDrucksacheText      = "drucksache-text"
	ResourcePlenarprotokoll     = "plenarprotokoll"
	ResourcePlenarprotokollText = "plenarprotokoll-text"
	ResourceVorgang             = "vorgang"
	ResourceVorgangsposition    = "vorgangsposition"
)

// Service bundles the resource methods. Each call owns its own result
// slice; nothing is accumulated across calls.
type Service struct {
	fetcher client.Fetcher
	engine  *pagination.Engine
}

// NewService creates a service on top of a fetcher (blocking or concurrent
// client, both work).
func NewService(fetcher client.Fetcher) *Service {
	return &Service{
		fetcher: fetcher,
		engine:  pagination.NewEngine(fetcher),
	}
}

// list fetches up to count documents from a resource.
func (s *Service) list(ctx context.Context, resource string, count int, filters Filters) ([]json.RawMessage, error) {
	if err := filters.validate(resource); err != nil {
		return nil, err
	}

	params := filters.values()
	params.Set("anzahl", strconv.Itoa(count))

	desc := client.NewDescriptor(resource, params)
	return s.engine.FetchN(ctx, desc, count)
}

// byID fetches a single document at resource/{id}. The response is the
// object itself, not a documents wrapper.
func (s *Service) byID(ctx context.Context, resource string, id int) (json.RawMessage, error) {
	desc := client.NewDescriptor(fmt.Sprintf("%s/%d", resource, id), nil)
	return s.fetcher.Fetch(ctx, desc)
}

// batchByID fetches the documents with the given IDs via repeated f.id
// parameters.
func (s *Service) batchByID(ctx context.Context, resource string, ids []int) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for _, id := range ids {
		params.Add("f.id", strconv.Itoa(id))
	}

	desc := client.NewDescriptor(resource, params)
	return s.engine.FetchN(ctx, desc, len(ids))
}

// Persons lists members of parliament and other persons.
func (s *Service) Persons(ctx context.Context, count int, filters Filters) ([]json.RawMessage, error) {
	return s.list(ctx, ResourcePerson, count, filters)
}

// Person fetches one person by ID.
func (s *Service) Person(ctx context.Context, id int) (json.RawMessage, error) {
	return s.byID(ctx, ResourcePerson, id)
}

// PersonsByID fetches a batch of persons by their IDs.
func (s *Service) PersonsByID(ctx context.Context, ids []int) ([]json.RawMessage, error) {
	return s.batchByID(ctx, ResourcePerson, ids)
}

// Aktivitaeten lists parliamentary activities.
func (s *Service) Aktivitaeten(ctx context.Context, count int, filters Filters) ([]json.RawMessage, error) {
	return s.list(ctx, ResourceAktivitaet, count, filters)
}

// Aktivitaet fetches one activity by ID.
func (s *Service) Aktivitaet(ctx context.Context, id int) (json.RawMessage, error) {
	return s.byID(ctx, ResourceAktivitaet, id)
}

// Drucksachen lists printed matters. With text=true the documents include
// the full text body (the drucksache-text resource).
func (s *Service) Drucksachen(ctx context.Context, count int, text bool, filters Filters) ([]json.RawMessage, error) {
	resource := ResourceDrucksache
	if text {
		resource = ResourceDrucksacheText
	}
	return s.list(ctx, resource, count, filters)
}

// Drucksache fetches one printed matter by ID.
func (s *Service) Drucksache(ctx context.Context, id int, text bool) (json.RawMessage, error) {
	resource := ResourceDrucksache
	if text {
		resource = ResourceDrucksacheText
	}
	return s.byID(ctx, resource, id)
}

// Plenarprotokolle lists plenary protocols, optionally with full text.
func (s *Service) Plenarprotokolle(ctx context.Context, count int, text bool, filters Filters) ([]json.RawMessage, error) {
	resource := ResourcePlenarprotokoll
	if text {
		resource = ResourcePlenarprotokollText
	}
	return s.list(ctx, resource, count, filters)
}

// Plenarprotokoll fetches one plenary protocol by ID.
func (s *Service) Plenarprotokoll(ctx context.Context, id int, text bool) (json.RawMessage, error) {
	resource := ResourcePlenarprotokoll
	if text {
		resource = ResourcePlenarprotokollText
	}
	return s.byID(ctx, resource, id)
}

// Vorgaenge lists legislative procedures.
func (s *Service) Vorgaenge(ctx context.Context, count int, filters Filters) ([]json.RawMessage, error) {
	return s.list(ctx, ResourceVorgang, count, filters)
}

// Vorgang fetches one procedure by ID.
func (s *Service) Vorgang(ctx context.Context, id int) (json.RawMessage, error) {
	return s.byID(ctx, ResourceVorgang, id)
}

// VorgaengeByID fetches a batch of procedures by their IDs.
func (s *Service) VorgaengeByID(ctx context.Context, ids []int) ([]json.RawMessage, error) {
	return s.batchByID(ctx, ResourceVorgang, ids)
}

// Vorgangspositionen lists procedure steps.
func (s *Service) Vorgangspositionen(ctx context.Context, count int, filters Filters) ([]json.RawMessage, error) {
	return s.list(ctx, ResourceVorgangsposition, count, filters)
}

// Search runs a full-text query across printed matters. The query string is
// passed through verbatim as the API's q parameter; filters narrow the
// result like any other drucksache listing.
func (s *Service) Search(ctx context.Context, query string, count int, filters Filters) ([]json.RawMessage, error) {
	if err := filters.validate(ResourceDrucksache); err != nil {
		return nil, err
	}

	params := filters.values()
	params.Set("q", query)
	params.Set("anzahl", strconv.Itoa(count))

	desc := client.NewDescriptor(ResourceDrucksache, params)
	return s.engine.FetchN(ctx, desc, count)
}
