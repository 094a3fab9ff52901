package cloudfoundry

import (
	"context"
	"encoding/json"
)

// Pager walks a paginated listing one page at a time. It performs one
// network call per Next and follows next_url until the last page; it
// never prefetches past the page the caller holds. A Pager is not safe
// for concurrent use and cannot be restarted.
type Pager struct {
	client *Client
	next   string
	done   bool
}

// Pager starts a paginated walk at the given endpoint.
func (c *Client) Pager(endpoint string) *Pager {
	return &Pager{client: c, next: endpoint}
}

// Next fetches the next page. It returns (nil, nil) once the listing is
// exhausted.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, nil
	}

	body, err := p.client.Fetch(ctx, p.next)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}

	if page.NextURL == nil || *page.NextURL == "" {
		p.done = true
	} else {
		p.next = *page.NextURL
	}
	return &page, nil
}

// Done reports whether the listing has been exhausted.
func (p *Pager) Done() bool {
	return p.done
}
