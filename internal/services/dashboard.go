package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/models"
)

// AdminStats are the figures on the admin overview. Expenses are not
// tracked yet, so NetProfit equals TotalRevenue.
type AdminStats struct {
	TotalRevenue   float64 `json:"total_revenue"`
	PendingIncome  float64 `json:"pending_income"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	Expenses       float64 `json:"expenses"`
	NetProfit      float64 `json:"net_profit"`
	ActiveProjects int64   `json:"active_projects"`
	TotalClients   int64   `json:"total_clients"`
	TotalInvoices  int64   `json:"total_invoices"`
}

type ClientSummary struct {
	Client       models.Profile `json:"client"`
	ProjectCount int            `json:"project_count"`
	Revenue      float64        `json:"revenue"`
	Pending      float64        `json:"pending"`
}

type ClientDetail struct {
	Client    models.Profile   `json:"client"`
	Projects  []models.Project `json:"projects"`
	Invoices  []models.Invoice `json:"invoices"`
	Completed int              `json:"completed_projects"`
	Ongoing   int              `json:"ongoing_projects"`
	Revenue   float64          `json:"revenue"`
	Pending   float64          `json:"pending"`
}

type DashboardService struct {
	db       *gorm.DB
	invoices *InvoiceService
	projects *ProjectService
}

func NewDashboardService(db *gorm.DB, invoices *InvoiceService, projects *ProjectService) *DashboardService {
	return &DashboardService{db: db, invoices: invoices, projects: projects}
}

// AdminStats aggregates in memory over all invoices; MonthlyRevenue counts
// paid invoices created in now's calendar month.
func (s *DashboardService) AdminStats(ctx context.Context, now time.Time) (AdminStats, error) {
	var st AdminStats
	invs, err := s.invoices.ListInvoices(ctx, FilterAll, 0)
	if err != nil {
		return st, err
	}
	st.TotalInvoices = int64(len(invs))
	st.TotalRevenue = Revenue(invs)
	st.PendingIncome = PendingIncome(invs)

	y, m, _ := now.Date()
	var monthly []models.Invoice
	for _, inv := range invs {
		iy, im, _ := inv.CreatedAt.In(now.Location()).Date()
		if iy == y && im == m {
			monthly = append(monthly, inv)
		}
	}
	st.MonthlyRevenue = Revenue(monthly)
	st.NetProfit = models.RoundCents(st.TotalRevenue - st.Expenses)

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Project{}).
		Where("status IN ?", []models.ProjectStatus{models.ProjectPending, models.ProjectInProgress}).
		Count(&st.ActiveProjects).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Profile{}).Where("role = ?", models.RoleClient).Count(&st.TotalClients).Error; err != nil {
		return st, err
	}
	return st, nil
}

// ListClients returns client profiles by name, optionally filtered by a
// case-insensitive search over name and email.
func (s *DashboardService) ListClients(ctx context.Context, search string) ([]models.Profile, error) {
	q := s.db.WithContext(ctx).Where("role = ?", models.RoleClient).Order("name, id")
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	var out []models.Profile
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) ClientSummaries(ctx context.Context, search string) ([]ClientSummary, error) {
	clients, err := s.ListClients(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return []ClientSummary{}, nil
	}
	ids := make([]uint, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}

	var projectRows []struct {
		ClientID uint
		N        int
	}
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Select("client_id, COUNT(*) AS n").
		Where("client_id IN ?", ids).
		Group("client_id").
		Scan(&projectRows).Error; err != nil {
		return nil, err
	}
	projectCounts := make(map[uint]int, len(projectRows))
	for _, r := range projectRows {
		projectCounts[r.ClientID] = r.N
	}

	var invs []models.Invoice
	if err := s.db.WithContext(ctx).Preload("Payments").Where("client_id IN ?", ids).Find(&invs).Error; err != nil {
		return nil, err
	}
	byClient := make(map[uint][]models.Invoice)
	for _, inv := range invs {
		byClient[inv.ClientID] = append(byClient[inv.ClientID], inv)
	}

	out := make([]ClientSummary, len(clients))
	for i, c := range clients {
		out[i] = ClientSummary{
			Client:       c,
			ProjectCount: projectCounts[c.ID],
			Revenue:      Revenue(byClient[c.ID]),
			Pending:      PendingIncome(byClient[c.ID]),
		}
	}
	return out, nil
}

func (s *DashboardService) ClientDetail(ctx context.Context, id uint) (*ClientDetail, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("role = ?", models.RoleClient).First(&p, id).Error; err != nil {
		return nil, notFound("client", id, err)
	}
	projects, err := s.projects.ListProjects(ctx, id)
	if err != nil {
		return nil, err
	}
	invs, err := s.invoices.ListInvoices(ctx, FilterAll, id)
	if err != nil {
		return nil, err
	}
	revenue, err := s.invoices.ClientRevenue(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &ClientDetail{
		Client:   p,
		Projects: projects,
		Invoices: invs,
		Revenue:  revenue,
		Pending:  PendingIncome(invs),
	}
	for _, pr := range projects {
		switch {
		case pr.Status == models.ProjectComplete:
			d.Completed++
		case pr.IsActive():
			d.Ongoing++
		}
	}
	return d, nil
}
