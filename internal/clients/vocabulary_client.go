// Package clients implements the synchronous HTTP calls one bounded
// context makes into another's query surface, generalized nearly
// verbatim in shape from the teacher's internal/clients
// (CatalogClient/MembershipClient) — a thin baseURL wrapper per target
// service, each request built with http.NewRequestWithContext and
// decoded with encoding/json. Unlike the teacher, every client here
// wraps its calls in a gobreaker.CircuitBreaker (go.mod already lists
// gobreaker for pkg/eventbus; these clients are its other consumer) so
// one struggling service can't cascade into request pile-ups on its
// callers — the teacher's circulation service called catalog/membership
// unprotected, which this system's distributed-by-design layout
// (spec §4, one service per context) can't afford.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jules-labs/lexitrace/internal/vocabulary"
	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// VocabularyClient lets the algorithm and search contexts resolve an
// item's current metadata without maintaining their own copy of the
// vocabulary aggregate.
type VocabularyClient struct {
	baseURL string
	breaker *gobreaker.CircuitBreaker
}

func NewVocabularyClient(baseURL string) *VocabularyClient {
	return &VocabularyClient{baseURL: baseURL, breaker: newBreaker("vocabulary-client")}
}

func (c *VocabularyClient) GetItem(ctx context.Context, id ids.ItemId) (*vocabulary.Item, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/vocabulary/items/%s", c.baseURL, id), nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errs.NewNotFound("vocabulary_item", id.String())
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("vocabulary client: unexpected status %d", resp.StatusCode)
		}

		var item vocabulary.Item
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return nil, err
		}
		return &item, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*vocabulary.Item), nil
}

// PublishItem marks an item published once AI enrichment completes
// (spec §4.4 precondition example) — called by whatever enrichment
// worker owns that decision, outside the vocabulary service itself.
func (c *VocabularyClient) PublishItem(ctx context.Context, id ids.ItemId) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/vocabulary/items/%s/publish", c.baseURL, id), bytes.NewReader(nil))
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return nil, fmt.Errorf("vocabulary client: unexpected status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
