package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/jules-labs/lexitrace/internal/user"
	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// UserClient lets the progress and algorithm contexts resolve a
// learner's profile (current CEFR level, learning goal) without
// maintaining their own copy of the user aggregate, generalized from
// the teacher's MembershipClient (internal/clients/membership_client.go).
type UserClient struct {
	baseURL string
	breaker *gobreaker.CircuitBreaker
}

func NewUserClient(baseURL string) *UserClient {
	return &UserClient{baseURL: baseURL, breaker: newBreaker("user-client")}
}

func (c *UserClient) GetUser(ctx context.Context, id ids.UserId) (*user.User, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%s", c.baseURL, id), nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errs.NewNotFound("user", id.String())
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("user client: unexpected status %d", resp.StatusCode)
		}

		var u user.User
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*user.User), nil
}
