package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/planform/planform/internal/plan"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithPool(mock), mock
}

func TestAgencyByAPIKeyLoadsCatalog(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, api_key").
		WithArgs("key-acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "api_key", "description"}).
			AddRow(int64(7), "Acme Digital", "key-acme", "Full-service."))

	mock.ExpectQuery("SELECT id, service_id, name").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "service_id", "name", "description", "outcomes",
			"price_lower", "price_upper", "when_to_recommend", "is_active",
		}).
			AddRow(int64(1), "seo-audit", "SEO Audit", "Audit.",
				[]byte(`["visibility"]`), 500, 2000, []byte(`["low organic traffic"]`), true).
			AddRow(int64(2), "ppc", "Paid Search", "PPC.",
				[]byte(`[]`), 1000, 5000, []byte(`[]`), true))

	agency, err := store.AgencyByAPIKey(context.Background(), "key-acme")
	require.NoError(t, err)
	require.Equal(t, int64(7), agency.ID)
	require.Len(t, agency.Services, 2)
	require.Equal(t, []string{"visibility"}, agency.Services[0].Outcomes)
	require.Equal(t, "ppc", agency.Services[1].ServiceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgencyByAPIKeyNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, api_key").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "api_key", "description"}))

	_, err := store.AgencyByAPIKey(context.Background(), "ghost")
	require.ErrorIs(t, err, plan.ErrAgencyNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgencyByAPIKeyQueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, api_key").
		WithArgs("key-acme").
		WillReturnError(errors.New("connection reset"))

	_, err := store.AgencyByAPIKey(context.Background(), "key-acme")
	require.Error(t, err)
	require.NotErrorIs(t, err, plan.ErrAgencyNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientByEmail(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, email").
		WithArgs("pat@example.com", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "website_url", "agency_id"}).
			AddRow(int64(3), "pat@example.com", "Pat", "https://acme.example", int64(7)))

	client, err := store.ClientByEmail(context.Background(), 7, "pat@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(3), client.ID)
	require.Equal(t, "Pat", client.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientByEmailNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, email").
		WithArgs("new@example.com", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "website_url", "agency_id"}))

	_, err := store.ClientByEmail(context.Background(), 7, "new@example.com")
	require.ErrorIs(t, err, plan.ErrClientNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClientReturnsID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO clients").
		WithArgs("pat@example.com", "Pat", "https://acme.example", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	client, err := store.CreateClient(context.Background(), plan.Client{
		Email:      "pat@example.com",
		Name:       "Pat",
		WebsiteURL: "https://acme.example",
		AgencyID:   7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), client.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePlanMarshalsPayload(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	payload := plan.Payload{
		Recommendations: []plan.DisplayRecommendation{
			{ServiceID: "ppc", ServiceName: "Paid Search", Reason: "leads"},
		},
		ExecutiveSummary: "s", PlanTitle: "t", SubTitle: "st", CallToAction: "cta",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO plans").
		WithArgs(int64(3), int64(7), data).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))

	planID, err := store.CreatePlan(context.Background(), 7, 3, payload)
	require.NoError(t, err)
	require.Equal(t, int64(21), planID)
	require.NoError(t, mock.ExpectationsWereMet())
}
