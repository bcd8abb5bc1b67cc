// Package fixture serves a small nutrition diary app exposing the pages and
// endpoints the recipe scenario drives. It is used by tests and demos.
package fixture

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"dev/bravebird/ui-smokecheck/pkg/recipe"
)

// DefaultFoodsPath is where the foods page lives unless configured otherwise
const DefaultFoodsPath = "/foods"

const defaultSearchLimit = 10

//go:embed static/*.html
var staticFS embed.FS

// Options configures the fixture app
type Options struct {
	// FoodsPath moves the foods page, e.g. to "/settings" to exercise route fallback
	FoodsPath string
}

// App is the fixture HTTP application
type App struct {
	foodsPath string
	foods     []Food
	pages     *template.Template
	router    *mux.Router
}

// New creates the fixture app
func New(opts Options) (*App, error) {
	foodsPath := opts.FoodsPath
	if foodsPath == "" {
		foodsPath = DefaultFoodsPath
	}
	if !strings.HasPrefix(foodsPath, "/") || foodsPath == "/" || strings.HasPrefix(foodsPath, "/api") {
		return nil, fmt.Errorf("invalid foods path: %q", foodsPath)
	}

	foods, err := loadFoods()
	if err != nil {
		return nil, err
	}

	pages, err := template.ParseFS(staticFS, "static/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}

	a := &App{
		foodsPath: foodsPath,
		foods:     foods,
		pages:     pages,
	}
	a.router = a.routes()
	return a, nil
}

// FoodsPath returns the route of the foods page
func (a *App) FoodsPath() string {
	return a.foodsPath
}

func (a *App) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/foods", a.searchFoods).Methods("GET")
	api.HandleFunc("/recipes/preview", a.previewRecipe).Methods("POST")

	// Registered first so it wins when moved onto /settings
	r.HandleFunc(a.foodsPath, a.page("foods.html")).Methods("GET")
	r.HandleFunc("/settings", a.page("settings.html")).Methods("GET")
	r.HandleFunc("/", a.page("home.html")).Methods("GET")

	return r
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "healthy"})
}

func (a *App) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct{ FoodsPath string }{a.foodsPath}
		if err := a.pages.ExecuteTemplate(w, name, data); err != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
	}
}

// searchFoods handles GET /api/foods?q=&limit=
func (a *App) searchFoods(w http.ResponseWriter, r *http.Request) {
	limit := defaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	respondJSON(w, a.Search(r.URL.Query().Get("q"), limit))
}

// PreviewRequest is the body of POST /api/recipes/preview
type PreviewRequest struct {
	Ingredients []recipe.Ingredient `json:"ingredients"`
	Mode        recipe.Mode         `json:"mode"`
	FinalValue  float64             `json:"final_value"`
}

// PreviewResponse is the live nutrition shown under the recipe form
type PreviewResponse struct {
	Totals    recipe.Totals    `json:"totals"`
	Nutrition recipe.Nutrition `json:"nutrition"`
}

func (a *App) previewRecipe(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = recipe.ModeWeight
	}

	totals := recipe.CalculateTotals(req.Ingredients)
	nutrition, err := recipe.Normalize(totals, req.Mode, req.FinalValue)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, PreviewResponse{Totals: totals, Nutrition: nutrition})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
