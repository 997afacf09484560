package brief

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/pkg/hubspot"
)

var contactProperties = []string{"firstname", "lastname", "email", "phone", "company"}

var companyProperties = []string{"name", "domain", "industry"}

// FetchContacts resolves the deal's contact associations and batch-reads
// the full contact records. A deal with no contacts yields an empty
// slice, not an error.
func FetchContacts(ctx context.Context, client hubspot.Client, dealID string) ([]model.Contact, error) {
	assocs, err := hubspot.ListAllAssociations(ctx, client, dealID, "contacts")
	if err != nil {
		return nil, eris.Wrap(err, "brief: resolve contact associations")
	}
	objs, err := client.BatchRead(ctx, "contacts", hubspot.TargetIDs(assocs), contactProperties)
	if err != nil {
		return nil, eris.Wrap(err, "brief: fetch contacts")
	}

	contacts := make([]model.Contact, len(objs))
	for i, obj := range objs {
		contacts[i] = model.Contact{
			ID:        obj.ID,
			FirstName: obj.Prop("firstname"),
			LastName:  obj.Prop("lastname"),
			Email:     obj.Prop("email"),
			Phone:     obj.Prop("phone"),
			Company:   obj.Prop("company"),
		}
	}
	return contacts, nil
}

// FetchCompanies resolves the deal's company associations and
// batch-reads the full company records.
func FetchCompanies(ctx context.Context, client hubspot.Client, dealID string) ([]model.Company, error) {
	assocs, err := hubspot.ListAllAssociations(ctx, client, dealID, "companies")
	if err != nil {
		return nil, eris.Wrap(err, "brief: resolve company associations")
	}
	objs, err := client.BatchRead(ctx, "companies", hubspot.TargetIDs(assocs), companyProperties)
	if err != nil {
		return nil, eris.Wrap(err, "brief: fetch companies")
	}

	companies := make([]model.Company, len(objs))
	for i, obj := range objs {
		companies[i] = model.Company{
			ID:       obj.ID,
			Name:     obj.Prop("name"),
			Domain:   obj.Prop("domain"),
			Industry: obj.Prop("industry"),
		}
	}
	return companies, nil
}

// CollectEngagements fetches every engagement category from the
// catalog concurrently, then flattens the results in catalog order so
// the accumulated sequence is deterministic regardless of completion
// order. Any category failure fails the whole collection.
func CollectEngagements(ctx context.Context, client hubspot.Client, dealID string) ([]model.Engagement, error) {
	catalog := model.Catalog()
	slots := make([][]model.Engagement, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range catalog {
		g.Go(func() error {
			engs, err := fetchCategory(gctx, client, dealID, spec)
			if err != nil {
				return err
			}
			slots[i] = engs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Engagement
	for _, engs := range slots {
		all = append(all, engs...)
	}
	return all, nil
}

// fetchCategory resolves associations for one category and batch-reads
// the records, stamping each with its category tag. Zero associations
// contribute nothing without touching the batch endpoint.
func fetchCategory(ctx context.Context, client hubspot.Client, dealID string, spec model.CategorySpec) ([]model.Engagement, error) {
	assocs, err := hubspot.ListAllAssociations(ctx, client, dealID, string(spec.Category))
	if err != nil {
		return nil, eris.Wrapf(err, "brief: resolve %s associations", spec.Category)
	}
	ids := hubspot.TargetIDs(assocs)
	if len(ids) == 0 {
		return nil, nil
	}

	objs, err := client.BatchRead(ctx, string(spec.Category), ids, spec.Properties)
	if err != nil {
		return nil, eris.Wrapf(err, "brief: fetch %s", spec.Category)
	}

	engs := make([]model.Engagement, len(objs))
	for i, obj := range objs {
		engs[i] = model.Engagement{
			ID:         obj.ID,
			Category:   spec.Category,
			Timestamp:  parseTimestampMillis(obj.Prop("hs_timestamp")),
			Properties: obj.Properties,
		}
	}
	return engs, nil
}
