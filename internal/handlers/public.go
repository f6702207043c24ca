package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/services"
)

// PublicHandler serves the marketing pages and the call request form.
type PublicHandler struct {
	calls *services.CallRequestService
}

func NewPublicHandler(calls *services.CallRequestService) *PublicHandler {
	return &PublicHandler{calls: calls}
}

func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	render(w, r, "home.html", nil)
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	render(w, r, "services.html", nil)
}

func (h *PublicHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	render(w, r, "pricing.html", map[string]any{"Plans": pricingPlans})
}

func (h *PublicHandler) Collaborate(w http.ResponseWriter, r *http.Request) {
	render(w, r, "collaborate.html", map[string]any{"Form": services.CallRequestInput{}})
}

// SubmitCollaborate stores a call request from the public form.
func (h *PublicHandler) SubmitCollaborate(w http.ResponseWriter, r *http.Request) {
	var in services.CallRequestInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = services.CallRequestInput{
			Name:            r.FormValue("name"),
			Email:           r.FormValue("email"),
			Phone:           r.FormValue("phone"),
			ProjectOverview: r.FormValue("project_overview"),
		}
	}

	cr, err := h.calls.Create(r.Context(), in)
	if err != nil {
		if jsonClient(r) {
			fail(w, r, err, "failed_to_create_call_request")
			return
		}
		if v, invalid := services.Violations(err); invalid {
			renderStatus(w, r, http.StatusBadRequest, "collaborate.html", map[string]any{"Form": in, "Errors": v})
			return
		}
		logger.FromContext(r.Context()).Error("create call request", zap.Error(err))
		render(w, r, "collaborate.html", map[string]any{"Form": in, "Error": "We could not send your request. Please try again."})
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusCreated, cr)
		return
	}
	render(w, r, "collaborate.html", map[string]any{"Sent": true, "Form": services.CallRequestInput{}})
}

type plan struct {
	Name        string
	Price       string
	Period      string
	Description string
	Features    []string
	Highlighted bool
}

var pricingPlans = []plan{
	{
		Name:        "Once-Off",
		Price:       "From $1,500",
		Period:      "per project",
		Description: "A fixed-scope build with a clear start and finish.",
		Features:    []string{"Discovery workshop", "Design and build", "Launch support", "30 days of fixes"},
	},
	{
		Name:        "Partnership",
		Price:       "From $900",
		Period:      "per month",
		Description: "An ongoing team for products that keep growing.",
		Features:    []string{"Dedicated developer hours", "Monthly roadmap review", "Priority support", "Hosting and maintenance"},
		Highlighted: true,
	},
}

// Showcase pages are static; their content lives here with the pricing plans.

type showcaseItem struct {
	Name         string
	Description  string
	Technologies []string
	// Badge is the pricing model for solutions and the state for products and projects.
	Badge    string
	Category string
	Link     string
	TryNow   bool
}

var solutions = []showcaseItem{
	{
		Name:         "Intellimark",
		Description:  "An AI tool with market insights, trends and analytics for East Africa's major markets.",
		Technologies: []string{"AI/ML", "Next.js", "TypeScript", "Python"},
		Badge:        "Free",
		Category:     "AI Tools",
		Link:         "https://intellimark-gamma.vercel.app/",
		TryNow:       true,
	},
	{
		Name:         "Head To Head",
		Description:  "Compare two YouTube channels side by side before choosing a partner or brand ambassador.",
		Technologies: []string{"React Js", "Vite", "TypeScript", "RESTful API"},
		Badge:        "Free",
		Category:     "Social Media Tools",
		Link:         "https://channel-showdown.vercel.app/",
		TryNow:       true,
	},
}

var products = []showcaseItem{
	{
		Name:         "TetraFert",
		Description:  "Website for a fertilizer plant in Harare with a product showcase and company profile.",
		Technologies: []string{"Next.js", "TypeScript", "Tailwind CSS"},
		Badge:        "Active",
		Link:         "https://tetrafert.com/",
	},
	{
		Name:         "Expagro",
		Description:  "Website for an agricultural exports company in Dar es Salaam.",
		Technologies: []string{"Next.js", "TypeScript", "Tailwind CSS"},
		Badge:        "Active",
		Link:         "https://expagroltd.com/",
	},
	{
		Name:         "Soko Cars",
		Description:  "ERP for a car importer covering inventory, sales and operations. Not publicly accessible.",
		Technologies: []string{"Next.js", "TypeScript", "Supabase", "PostgreSQL"},
		Badge:        "Active",
	},
}

var portfolio = []showcaseItem{
	{
		Name:         "E-commerce Platform",
		Description:  "Storefront with payment integration, inventory management and an admin dashboard.",
		Technologies: []string{"Next.js", "TypeScript", "PostgreSQL", "Stripe"},
		Badge:        "Completed",
	},
	{
		Name:         "Internal Dashboard",
		Description:  "Replaced spreadsheet workflows with live data and automation.",
		Technologies: []string{"React", "Node.js", "MongoDB", "Chart.js"},
		Badge:        "Completed",
	},
	{
		Name:         "Mobile App MVP",
		Description:  "Cross-platform app for customer engagement and analytics.",
		Technologies: []string{"React Native", "Firebase", "Redux"},
		Badge:        "Ongoing",
	},
	{
		Name:         "Customer Portal",
		Description:  "Self-service billing, support tickets and account management.",
		Technologies: []string{"Vue.js", "Django", "PostgreSQL"},
		Badge:        "Completed",
	},
}

func (h *PublicHandler) Solutions(w http.ResponseWriter, r *http.Request) {
	render(w, r, "showcase.html", map[string]any{
		"Title": "Solutions", "Lead": "Tools you can use today.", "Items": solutions,
	})
}

func (h *PublicHandler) Products(w http.ResponseWriter, r *http.Request) {
	render(w, r, "showcase.html", map[string]any{
		"Title": "Products", "Lead": "Software we built and run for our own users.", "Items": products,
	})
}

// Portfolio is the public /projects page, not the client project list.
func (h *PublicHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	render(w, r, "showcase.html", map[string]any{
		"Title": "Projects", "Lead": "Work delivered for clients.", "Items": portfolio,
	})
}
