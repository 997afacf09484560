package brief

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/pkg/hubspot"
)

// Result carries everything fetched for one deal plus the assembled
// document. Nothing in it is shared across builds.
type Result struct {
	Deal        model.Deal         `json:"deal"`
	Contacts    []model.Contact    `json:"contacts"`
	Companies   []model.Company    `json:"companies"`
	Engagements []model.Engagement `json:"engagements"`
	URLs        *URLIndex          `json:"-"`
	Document    string             `json:"document"`
}

// Builder fetches a deal's full context from the CRM and assembles the
// analysis document.
type Builder struct {
	crm hubspot.Client
}

func NewBuilder(crm hubspot.Client) *Builder {
	return &Builder{crm: crm}
}

// Build fetches the deal record, its contacts, companies, and all
// engagement categories concurrently, then assembles the document.
// Any fetch failure aborts the whole build: a document missing an
// entire data category would silently mislead the model downstream.
func (b *Builder) Build(ctx context.Context, dealID string) (*Result, error) {
	var (
		dealObj     *hubspot.Object
		contacts    []model.Contact
		companies   []model.Company
		engagements []model.Engagement
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dealObj, err = b.crm.GetDeal(gctx, dealID)
		return err
	})
	g.Go(func() error {
		var err error
		contacts, err = FetchContacts(gctx, b.crm, dealID)
		return err
	})
	g.Go(func() error {
		var err error
		companies, err = FetchCompanies(gctx, b.crm, dealID)
		return err
	})
	g.Go(func() error {
		var err error
		engagements, err = CollectEngagements(gctx, b.crm, dealID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "brief: build deal %s", dealID)
	}

	deal := dealFromObject(*dealObj)
	urls := CollectURLs(engagements)
	doc := Assemble(deal, contacts, companies, engagements, urls)

	zap.L().Info("brief: deal document assembled",
		zap.String("deal_id", dealID),
		zap.String("deal_name", deal.Name),
		zap.Int("contacts", len(contacts)),
		zap.Int("companies", len(companies)),
		zap.Int("engagements", len(engagements)),
		zap.Int("urls", urls.Len()),
		zap.Int("document_bytes", len(doc)))

	return &Result{
		Deal:        deal,
		Contacts:    contacts,
		Companies:   companies,
		Engagements: engagements,
		URLs:        urls,
		Document:    doc,
	}, nil
}

// dealFromObject maps the raw CRM record onto the deal model. Values
// stay as the CRM sent them; display fallbacks happen at render time.
func dealFromObject(obj hubspot.Object) model.Deal {
	return model.Deal{
		ID:           obj.ID,
		Name:         obj.Prop("dealname"),
		Amount:       obj.Prop("amount"),
		Stage:        obj.Prop("dealstage"),
		Pipeline:     obj.Prop("pipeline"),
		CreateDate:   obj.Prop("createdate"),
		CloseDate:    obj.Prop("closedate"),
		OwnerID:      obj.Prop("hubspot_owner_id"),
		Description:  obj.Prop("description"),
		LastModified: obj.Prop("hs_lastmodifieddate"),
	}
}
