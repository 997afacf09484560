package hubspot

import (
	"context"

	"github.com/rotisserie/eris"
)

// ListAllAssociations follows the association cursor until the remote
// side stops returning one, accumulating edges in request order. The
// result never contains partial data: any page failure fails the whole
// listing.
func ListAllAssociations(ctx context.Context, c Client, dealID, toObjectType string) ([]Association, error) {
	var all []Association
	after := ""
	for {
		page, err := c.ListAssociations(ctx, dealID, toObjectType, after)
		if err != nil {
			return nil, eris.Wrap(err, "hubspot: list all associations")
		}
		all = append(all, page.Results...)

		if page.Paging == nil || page.Paging.Next == nil || page.Paging.Next.After == "" {
			return all, nil
		}
		after = page.Paging.Next.After
	}
}
