package brief

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dealbrief/pkg/hubspot"
)

// --- CRM Mock ---

type mockCRMClient struct {
	mock.Mock
}

func (m *mockCRMClient) GetDeal(ctx context.Context, dealID string) (*hubspot.Object, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Object), args.Error(1)
}

func (m *mockCRMClient) ListAssociations(ctx context.Context, dealID, toObjectType, after string) (*hubspot.AssociationPage, error) {
	args := m.Called(ctx, dealID, toObjectType, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.AssociationPage), args.Error(1)
}

func (m *mockCRMClient) BatchRead(ctx context.Context, objectType string, ids, properties []string) ([]hubspot.Object, error) {
	args := m.Called(ctx, objectType, ids, properties)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Object), args.Error(1)
}
