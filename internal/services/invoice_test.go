package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/agency-portal/internal/models"
)

func TestCreateInvoice_ComputesTotals(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID: client.ID,
		Notes:    " net 30 ",
		Items: []ItemInput{
			{Description: "Design", Quantity: 2, Price: 750},
			{Description: "Hosting", Quantity: 12, Price: 25.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "net 30", inv.Notes)
	assert.Equal(t, 1806.0, inv.Total)

	got, err := svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	for _, it := range got.Items {
		assert.Equal(t, it.Quantity*it.Price, it.Total)
	}
	assert.Equal(t, got.ItemsTotal(), got.Total)
	assert.Equal(t, "acme", got.Client.Name)
}

func TestCreateInvoice_FractionalQuantitiesRoundPerItem(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		ClientID: client.ID,
		Items: []ItemInput{
			{Description: "Support", Quantity: 0.5, Price: 0.67},
			{Description: "Support", Quantity: 0.5, Price: 0.67},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.68, inv.Total)

	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	for _, it := range got.Items {
		assert.Equal(t, 0.34, it.Total)
	}
	assert.Equal(t, got.ItemsTotal(), got.Total)

	// Recomputing from stored rows must not move the total.
	_, err = svc.AddItem(ctx, inv.ID, ItemInput{Description: "Call", Quantity: 1, Price: 1})
	require.NoError(t, err)
	got, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.68, got.Total)
	assert.Equal(t, got.ItemsTotal(), got.Total)
}

func TestCreateInvoice_Validation(t *testing.T) {
	gdb := newTestDB(t)
	admin := seedProfile(t, gdb, "boss", models.RoleAdmin)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{})
	v, ok := Violations(err)
	require.True(t, ok)
	assert.Equal(t, "required", v["client_id"])
	assert.Equal(t, "required", v["items"])

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: admin.ID, Items: []ItemInput{{Description: "x", Quantity: 1, Price: 1}}})
	v, _ = Violations(err)
	assert.Equal(t, "unknown_client", v["client_id"])

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client.ID, Items: []ItemInput{
		{Description: "", Quantity: 1, Price: 10},
		{Description: "Free", Quantity: 1, Price: 0},
	}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	v, _ = Violations(err)
	assert.Equal(t, "required", v["items[0].description"])
	assert.Equal(t, "must_be_positive", v["items[1].price"])

	var count int64
	gdb.Model(&models.Invoice{}).Count(&count)
	assert.Zero(t, count, "nothing is written when validation fails")
}

func TestListInvoices_Filters(t *testing.T) {
	gdb := newTestDB(t)
	a := seedProfile(t, gdb, "a", models.RoleClient)
	b := seedProfile(t, gdb, "b", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	mk := func(client uint, paid bool, price float64) {
		_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client, IsPaid: paid, Items: []ItemInput{{Description: "work", Quantity: 1, Price: price}}})
		require.NoError(t, err)
	}
	mk(a.ID, true, 100)
	mk(a.ID, false, 200)
	mk(b.ID, true, 400)

	all, err := svc.ListInvoices(ctx, FilterAll, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paidA, err := svc.ListInvoices(ctx, FilterPaid, a.ID)
	require.NoError(t, err)
	require.Len(t, paidA, 1)
	assert.Equal(t, 100.0, paidA[0].Total)

	outstanding, err := svc.ListInvoices(ctx, FilterOutstanding, 0)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)

	rev, err := svc.ClientRevenue(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rev)
}

func TestFilterAndPartition(t *testing.T) {
	invs := []models.Invoice{
		{ID: 1, IsPaid: true, Total: 10},
		{ID: 2, IsPaid: false, Total: 20},
		{ID: 3, IsPaid: true, Total: 30},
		{ID: 4, IsPaid: false, Total: 40},
	}
	paid, outstanding := PartitionByPaid(invs)
	assert.Len(t, paid, 2)
	assert.Len(t, outstanding, 2)

	seen := map[uint]int{}
	for _, inv := range append(paid, outstanding...) {
		seen[inv.ID]++
	}
	for _, inv := range invs {
		assert.Equal(t, 1, seen[inv.ID], "invoice %d", inv.ID)
	}

	assert.Equal(t, paid, FilterInvoices(invs, FilterPaid))
	assert.Equal(t, outstanding, FilterInvoices(invs, FilterOutstanding))
	assert.Equal(t, invs, FilterInvoices(invs, ParseInvoiceFilter("bogus")))
	assert.Equal(t, 40.0, Revenue(invs))
	assert.Equal(t, 60.0, PendingIncome(invs))
}

func TestParseInvoiceFilter(t *testing.T) {
	assert.Equal(t, FilterPaid, ParseInvoiceFilter(" Paid "))
	assert.Equal(t, FilterOutstanding, ParseInvoiceFilter("outstanding"))
	assert.Equal(t, FilterAll, ParseInvoiceFilter(""))
}

func TestItemsRecomputeTotal(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client.ID, Items: []ItemInput{{Description: "a", Quantity: 1, Price: 100}}})
	require.NoError(t, err)

	it, err := svc.AddItem(ctx, inv.ID, ItemInput{Description: "b", Quantity: 3, Price: 10})
	require.NoError(t, err)
	got, _ := svc.GetInvoice(ctx, inv.ID)
	assert.Equal(t, 130.0, got.Total)

	require.NoError(t, svc.RemoveItem(ctx, inv.ID, it.ID))
	got, _ = svc.GetInvoice(ctx, inv.ID)
	assert.Equal(t, 100.0, got.Total)

	assert.ErrorIs(t, svc.RemoveItem(ctx, inv.ID, it.ID), ErrNotFound)
	_, err = svc.AddItem(ctx, 999, ItemInput{Description: "x", Quantity: 1, Price: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPayment(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client.ID, Items: []ItemInput{{Description: "a", Quantity: 1, Price: 500}}})
	require.NoError(t, err)

	p, err := svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: 200, Remarks: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, 2026, p.PaymentDate.Year())

	got, _ := svc.GetInvoice(ctx, inv.ID)
	assert.False(t, got.IsPaid)
	assert.Equal(t, 200.0, got.AmountPaid())
	assert.Equal(t, 300.0, got.AmountDue())

	_, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: 300})
	require.NoError(t, err)
	got, _ = svc.GetInvoice(ctx, inv.ID)
	assert.True(t, got.IsPaid, "covering payment marks the invoice paid")
	assert.Equal(t, 0.0, got.AmountDue())

	_, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.RecordPayment(ctx, 999, PaymentInput{Amount: 10})
	assert.ErrorIs(t, err, ErrNotFound)

	payments, err := svc.ListPayments(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "acme", payments[0].Invoice.Client.Name)

	other := seedProfile(t, gdb, "other", models.RoleClient)
	none, err := svc.ListPayments(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteInvoice(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client.ID, Items: []ItemInput{{Description: "a", Quantity: 1, Price: 50}}})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: 10})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(ctx, inv.ID))
	var items, payments int64
	gdb.Model(&models.InvoiceItem{}).Count(&items)
	gdb.Model(&models.Payment{}).Count(&payments)
	assert.Zero(t, items)
	assert.Zero(t, payments)

	_, err = svc.GetInvoice(ctx, inv.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, svc.DeleteInvoice(ctx, inv.ID), ErrNotFound)
}

func TestSetPaidAndNotes(t *testing.T) {
	gdb := newTestDB(t)
	client := seedProfile(t, gdb, "acme", models.RoleClient)
	svc := NewInvoiceService(gdb)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{ClientID: client.ID, Items: []ItemInput{{Description: "a", Quantity: 1, Price: 50}}})
	require.NoError(t, err)

	require.NoError(t, svc.SetPaid(ctx, inv.ID, true))
	require.NoError(t, svc.UpdateNotes(ctx, inv.ID, "thanks"))
	got, _ := svc.GetInvoice(ctx, inv.ID)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "thanks", got.Notes)

	require.NoError(t, svc.SetPaid(ctx, inv.ID, false))
	got, _ = svc.GetInvoice(ctx, inv.ID)
	assert.False(t, got.IsPaid)

	assert.ErrorIs(t, svc.SetPaid(ctx, 404, true), ErrNotFound)
	assert.ErrorIs(t, svc.UpdateNotes(ctx, 404, "x"), ErrNotFound)
}

func TestClientLookupFailureIsNotAViolation(t *testing.T) {
	gdb := newTestDB(t)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	ctx := context.Background()

	_, err = NewInvoiceService(gdb).CreateInvoice(ctx, CreateInvoiceInput{
		ClientID: 1,
		Items:    []ItemInput{{Description: "x", Quantity: 1, Price: 1}},
	})
	require.Error(t, err)
	_, isViolation := Violations(err)
	assert.False(t, isViolation)

	cid := uint(1)
	_, err = NewProjectService(gdb).CreateProject(ctx, ProjectInput{ProjectName: "Site", ClientID: &cid})
	require.Error(t, err)
	_, isViolation = Violations(err)
	assert.False(t, isViolation)
}
