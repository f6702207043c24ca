package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/agency-portal/internal/models"
)

func TestAdminStats(t *testing.T) {
	gdb := newTestDB(t)
	a := seedProfile(t, gdb, "a", models.RoleClient)
	b := seedProfile(t, gdb, "b", models.RoleClient)
	seedProfile(t, gdb, "boss", models.RoleAdmin)
	invoices := NewInvoiceService(gdb)
	projects := NewProjectService(gdb)
	dash := NewDashboardService(gdb, invoices, projects)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	mk := func(client uint, paid bool, price float64, created time.Time) {
		inv, err := invoices.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client, IsPaid: paid, Items: []ItemInput{{Description: "w", Quantity: 1, Price: price}}})
		require.NoError(t, err)
		require.NoError(t, gdb.Model(inv).Update("created_at", created).Error)
	}
	mk(a.ID, true, 1000, now.AddDate(0, 0, -3))
	mk(a.ID, true, 500, now.AddDate(0, -1, 0))
	mk(b.ID, false, 300, now)
	mk(b.ID, true, 200, now.AddDate(-1, 0, 0))

	for _, st := range []models.ProjectStatus{models.ProjectPending, models.ProjectInProgress, models.ProjectComplete, models.ProjectPaused} {
		_, err := projects.CreateProject(ctx, ProjectInput{ProjectName: string(st), Status: st})
		require.NoError(t, err)
	}

	st, err := dash.AdminStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1700.0, st.TotalRevenue)
	assert.Equal(t, 300.0, st.PendingIncome)
	assert.Equal(t, 1000.0, st.MonthlyRevenue, "same month of last year is excluded")
	assert.Equal(t, 1700.0, st.NetProfit)
	assert.Equal(t, int64(2), st.ActiveProjects)
	assert.Equal(t, int64(2), st.TotalClients)
	assert.Equal(t, int64(4), st.TotalInvoices)
}

func TestClientSummariesAndDetail(t *testing.T) {
	gdb := newTestDB(t)
	a := seedProfile(t, gdb, "alpha", models.RoleClient)
	b := seedProfile(t, gdb, "bravo", models.RoleClient)
	seedProfile(t, gdb, "boss", models.RoleAdmin)
	invoices := NewInvoiceService(gdb)
	projects := NewProjectService(gdb)
	dash := NewDashboardService(gdb, invoices, projects)
	ctx := context.Background()

	_, err := projects.CreateProject(ctx, ProjectInput{ProjectName: "Site", ClientID: &a.ID, Status: models.ProjectComplete})
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, ProjectInput{ProjectName: "App", ClientID: &a.ID, Status: models.ProjectInProgress})
	require.NoError(t, err)
	_, err = invoices.CreateInvoice(ctx, CreateInvoiceInput{ClientID: a.ID, IsPaid: true, Items: []ItemInput{{Description: "w", Quantity: 2, Price: 100}}})
	require.NoError(t, err)
	unpaid, err := invoices.CreateInvoice(ctx, CreateInvoiceInput{ClientID: a.ID, Items: []ItemInput{{Description: "w", Quantity: 1, Price: 80}}})
	require.NoError(t, err)
	_, err = invoices.RecordPayment(ctx, unpaid.ID, PaymentInput{Amount: 30})
	require.NoError(t, err)

	sums, err := dash.ClientSummaries(ctx, "")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "alpha", sums[0].Client.Name)
	assert.Equal(t, 2, sums[0].ProjectCount)
	assert.Equal(t, 200.0, sums[0].Revenue)
	assert.Equal(t, 50.0, sums[0].Pending)
	assert.Equal(t, 0, sums[1].ProjectCount)

	filtered, err := dash.ClientSummaries(ctx, "BRA")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, b.ID, filtered[0].Client.ID)

	none, err := dash.ClientSummaries(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)

	d, err := dash.ClientDetail(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Completed)
	assert.Equal(t, 1, d.Ongoing)
	assert.Len(t, d.Invoices, 2)
	assert.Equal(t, 200.0, d.Revenue)
	assert.Equal(t, 50.0, d.Pending)
	rev, err := invoices.ClientRevenue(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, rev, d.Revenue)

	_, err = dash.ClientDetail(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
