package backend

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func pageQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}

func (c *Client) ListUnassignedRecipients(
	ctx context.Context,
	page, perPage int,
	search string,
) (out domain.RecipientPage, err error) {
	defer obs.Time(ctx, "backend.ListUnassignedRecipients")(&err)

	q := pageQuery(page, perPage)
	q.Set("status", string(domain.RecipientUnassigned))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}

	if err := c.call(ctx, http.MethodGet, "/recipients?"+q.Encode(), nil, &out, true); err != nil {
		return domain.RecipientPage{}, fmt.Errorf("list recipients: %w", err)
	}
	if out.Items == nil {
		out.Items = []domain.Recipient{}
	}
	return out, nil
}

func (c *Client) ListCouriers(ctx context.Context, page, perPage int) (out domain.CourierPage, err error) {
	defer obs.Time(ctx, "backend.ListCouriers")(&err)

	q := pageQuery(page, perPage)
	if err := c.call(ctx, http.MethodGet, "/couriers?"+q.Encode(), nil, &out, true); err != nil {
		return domain.CourierPage{}, fmt.Errorf("list couriers: %w", err)
	}
	if out.Items == nil {
		out.Items = []domain.Courier{}
	}
	return out, nil
}
