package dip

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bundesdata/go-dip/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFetcher captures descriptors and answers with a single exhausted
// page of canned documents.
type recordingFetcher struct {
	descriptors []client.Descriptor
	documents   []json.RawMessage
	single      json.RawMessage
}

func (f *recordingFetcher) Fetch(_ context.Context, desc client.Descriptor) (json.RawMessage, error) {
	f.descriptors = append(f.descriptors, desc)

	if f.single != nil {
		return f.single, nil
	}
	page := map[string]any{"documents": f.documents, "cursor": ""}
	return json.Marshal(page)
}

func cannedDocs(n int) []json.RawMessage {
	docs := make([]json.RawMessage, n)
	for i := range docs {
		docs[i] = json.RawMessage(`{"id":"1"}`)
	}
	return docs
}

func TestService_PersonsBuildsRequest(t *testing.T) {
	fetcher := &recordingFetcher{documents: cannedDocs(3)}
	service := NewService(fetcher)

	docs, err := service.Persons(context.Background(), 3, Filters{
		"wahlperiode": {"20"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	require.Len(t, fetcher.descriptors, 1)
	desc := fetcher.descriptors[0]
	assert.Equal(t, "person", desc.Endpoint())
	assert.Equal(t, "3", desc.Params().Get("anzahl"))
	assert.Equal(t, "20", desc.Params().Get("f.wahlperiode"))
}

func TestService_RejectsUnrecognizedFilter(t *testing.T) {
	fetcher := &recordingFetcher{}
	service := NewService(fetcher)

	_, err := service.Persons(context.Background(), 10, Filters{
		"vorgangstyp": {"Gesetzgebung"}, // vorgang filter, not valid for person
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vorgangstyp")
	assert.Empty(t, fetcher.descriptors, "invalid filters must fail before any request")
}

func TestService_ResourceSpecificFilterAccepted(t *testing.T) {
	fetcher := &recordingFetcher{documents: cannedDocs(1)}
	service := NewService(fetcher)

	_, err := service.Vorgaenge(context.Background(), 1, Filters{
		"vorgangstyp": {"Gesetzgebung"},
		"wahlperiode": {"20"},
	})
	require.NoError(t, err)
}

func TestService_PersonByID(t *testing.T) {
	fetcher := &recordingFetcher{single: json.RawMessage(`{"id":"11000001","nachname":"Mustermann"}`)}
	service := NewService(fetcher)

	doc, err := service.Person(context.Background(), 11000001)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"11000001","nachname":"Mustermann"}`, string(doc))

	require.Len(t, fetcher.descriptors, 1)
	assert.Equal(t, "person/11000001", fetcher.descriptors[0].Endpoint())
}

func TestService_BatchByID(t *testing.T) {
	fetcher := &recordingFetcher{documents: cannedDocs(3)}
	service := NewService(fetcher)

	docs, err := service.VorgaengeByID(context.Background(), []int{301, 302, 303})
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	require.Len(t, fetcher.descriptors, 1)
	ids := fetcher.descriptors[0].Params()["f.id"]
	assert.Equal(t, []string{"301", "302", "303"}, ids)
}

func TestService_BatchByIDEmpty(t *testing.T) {
	fetcher := &recordingFetcher{}
	service := NewService(fetcher)

	docs, err := service.PersonsByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, fetcher.descriptors)
}

func TestService_TextVariantSwitchesEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		text     bool
		endpoint string
	}{
		{name: "metadata only", text: false, endpoint: "drucksache"},
		{name: "full text", text: true, endpoint: "drucksache-text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &recordingFetcher{documents: cannedDocs(1)}
			service := NewService(fetcher)

			_, err := service.Drucksachen(context.Background(), 1, tt.text, nil)
			require.NoError(t, err)
			require.Len(t, fetcher.descriptors, 1)
			assert.Equal(t, tt.endpoint, fetcher.descriptors[0].Endpoint())
		})
	}
}

func TestService_SearchSetsQuery(t *testing.T) {
	fetcher := &recordingFetcher{documents: cannedDocs(2)}
	service := NewService(fetcher)

	docs, err := service.Search(context.Background(), "Klimaschutz", 2, Filters{
		"datum.start": {"2024-01-01"},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.Len(t, fetcher.descriptors, 1)
	desc := fetcher.descriptors[0]
	assert.Equal(t, "drucksache", desc.Endpoint())
	assert.Equal(t, "Klimaschutz", desc.Params().Get("q"))
	assert.Equal(t, "2024-01-01", desc.Params().Get("f.datum.start"))
}

func TestFilters_Values(t *testing.T) {
	filters := Filters{
		"wahlperiode": {"19", "20"},
		"datum.start": {"2024-01-01"},
	}

	params := filters.values()
	assert.Equal(t, []string{"19", "20"}, params["f.wahlperiode"])
	assert.Equal(t, "2024-01-01", params.Get("f.datum.start"))
}
