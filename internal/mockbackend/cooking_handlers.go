package mockbackend

import (
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Category is a recipe category as served by the app API.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	Sort int    `json:"sort"`
}

// Recipe is a recipe as served by the app API.
type Recipe struct {
	ID          int64    `json:"id"`
	CategoryID  int64    `json:"categoryId"`
	Title       string   `json:"title"`
	Cover       string   `json:"cover,omitempty"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Minutes     int      `json:"minutes"`
	Views       int64    `json:"views"`
	Favorites   int64    `json:"favorites"`
}

type pageResult struct {
	List  []Recipe `json:"list"`
	Total int64    `json:"total"`
}

func seedCategories() []Category {
	return []Category{
		{ID: 1, Name: "Soups", Sort: 1},
		{ID: 2, Name: "Noodles", Sort: 2},
		{ID: 3, Name: "Desserts", Sort: 3},
	}
}

func seedRecipes() []Recipe {
	return []Recipe{
		{ID: 1, CategoryID: 1, Title: "Tomato egg drop soup", Minutes: 15, Views: 420,
			Ingredients: []string{"tomato", "egg", "scallion"},
			Steps:       []string{"Simmer tomato", "Drizzle beaten egg", "Season and serve"}},
		{ID: 2, CategoryID: 2, Title: "Scallion oil noodles", Minutes: 20, Views: 980,
			Ingredients: []string{"noodles", "scallion", "soy sauce"},
			Steps:       []string{"Fry scallions slowly", "Boil noodles", "Toss with oil and sauce"}},
		{ID: 3, CategoryID: 3, Title: "Mango pomelo sago", Minutes: 40, Views: 310,
			Ingredients: []string{"mango", "pomelo", "sago", "coconut milk"},
			Steps:       []string{"Cook sago", "Blend mango", "Combine and chill"}},
		{ID: 4, CategoryID: 1, Title: "Winter melon pork rib soup", Minutes: 90, Views: 150,
			Ingredients: []string{"winter melon", "pork ribs", "ginger"},
			Steps:       []string{"Blanch ribs", "Simmer with ginger", "Add melon"}},
	}
}

func (s *Server) registerCookingRoutes() {
	g := s.echo.Group("/app-api/cooking/app")
	g.GET("/category/list", s.listCategories)
	g.GET("/recipe/page", s.recipePage)
	g.GET("/recipe/popular", s.popularRecipes)
	g.GET("/recipe/favorites", s.listFavorites)
	g.GET("/recipe/:id", s.getRecipe)
	g.POST("/recipe/:id/favorite", s.addFavorite)
	g.DELETE("/recipe/:id/favorite", s.removeFavorite)
}

func (s *Server) listCategories(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ok(c, s.categories)
}

// recipePage handles GET /recipe/page?pageNo=&pageSize=&categoryId=
func (s *Server) recipePage(c echo.Context) error {
	pageNo := queryInt(c, "pageNo", 1)
	pageSize := queryInt(c, "pageSize", 10)
	categoryID := int64(queryInt(c, "categoryId", 0))
	if pageNo < 1 || pageSize < 1 || pageSize > 100 {
		return fail(c, CodeBadRequest, "invalid paging parameters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Recipe
	for _, r := range s.recipes {
		if categoryID == 0 || r.CategoryID == categoryID {
			matched = append(matched, s.withFavoritesLocked(r))
		}
	}
	start := min((pageNo-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return ok(c, pageResult{List: append([]Recipe{}, matched[start:end]...), Total: int64(len(matched))})
}

func (s *Server) popularRecipes(c echo.Context) error {
	limit := queryInt(c, "limit", 3)
	if limit < 1 {
		return fail(c, CodeBadRequest, "invalid limit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		sorted = append(sorted, s.withFavoritesLocked(r))
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })
	return ok(c, sorted[:min(limit, len(sorted))])
}

func (s *Server) getRecipe(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, CodeBadRequest, "invalid recipe id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.recipeLocked(id)
	if !found {
		return fail(c, CodeRecipeNotFound, "recipe not found")
	}
	return ok(c, s.withFavoritesLocked(r))
}

func (s *Server) listFavorites(c echo.Context) error {
	acct := s.authenticate(c)
	if acct == nil {
		return s.unauthorized(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := []Recipe{}
	for _, r := range s.recipes {
		if s.favorites[acct.user.ID][r.ID] {
			list = append(list, s.withFavoritesLocked(r))
		}
	}
	return ok(c, pageResult{List: list, Total: int64(len(list))})
}

func (s *Server) addFavorite(c echo.Context) error {
	return s.setFavorite(c, true)
}

func (s *Server) removeFavorite(c echo.Context) error {
	return s.setFavorite(c, false)
}

func (s *Server) setFavorite(c echo.Context, favorite bool) error {
	acct := s.authenticate(c)
	if acct == nil {
		return s.unauthorized(c)
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, CodeBadRequest, "invalid recipe id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.recipeLocked(id); !found {
		return fail(c, CodeRecipeNotFound, "recipe not found")
	}
	if s.favorites[acct.user.ID] == nil {
		s.favorites[acct.user.ID] = make(map[int64]bool)
	}
	if favorite {
		s.favorites[acct.user.ID][id] = true
	} else {
		delete(s.favorites[acct.user.ID], id)
	}
	return ok(c, true)
}

func (s *Server) recipeLocked(id int64) (Recipe, bool) {
	for _, r := range s.recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

func (s *Server) withFavoritesLocked(r Recipe) Recipe {
	var n int64
	for _, favs := range s.favorites {
		if favs[r.ID] {
			n++
		}
	}
	r.Favorites = n
	return r
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
