// Package cooking is the recipe catalogue of the app backend. Browsing is
// public; favourites need a session.
package cooking

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-cooking-client/api"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
)

const (
	pathCategories = "/cooking/app/category/list"
	pathRecipePage = "/cooking/app/recipe/page"
	pathPopular    = "/cooking/app/recipe/popular"
	pathFavorites  = "/cooking/app/recipe/favorites"
	pathRecipe     = "/cooking/app/recipe/"

	maxPageSize = 100
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	Sort int    `json:"sort"`
}

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

// PageQuery selects one page of recipes. A zero CategoryID matches every category.
type PageQuery struct {
	PageNo     int
	PageSize   int
	CategoryID int64
}

func (q PageQuery) values() (url.Values, error) {
	if q.PageNo == 0 {
		q.PageNo = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 10
	}
	if q.PageNo < 1 || q.PageSize < 1 || q.PageSize > maxPageSize {
		return nil, errors.Wrapf(apperrors.ErrInvalidRequest, "page %d size %d", q.PageNo, q.PageSize)
	}
	v := url.Values{}
	v.Set("pageNo", strconv.Itoa(q.PageNo))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.CategoryID > 0 {
		v.Set("categoryId", strconv.FormatInt(q.CategoryID, 10))
	}
	return v, nil
}

// Service calls the recipe endpoints of the app backend.
type Service struct {
	client *api.Client
}

func NewService(app *api.Client) *Service {
	return &Service{client: app}
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := s.client.Get(ctx, pathCategories, nil, &out); err != nil {
		return nil, errors.Wrap(err, "[Service.Categories]")
	}
	return out, nil
}

func (s *Service) RecipePage(ctx context.Context, q PageQuery) (*api.PageResult[Recipe], error) {
	query, err := q.values()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.RecipePage]")
	}
	var out api.PageResult[Recipe]
	if err := s.client.Get(ctx, pathRecipePage, query, &out); err != nil {
		return nil, errors.Wrap(err, "[Service.RecipePage]")
	}
	return &out, nil
}

// Popular returns up to limit recipes ordered by views.
func (s *Service) Popular(ctx context.Context, limit int) ([]Recipe, error) {
	if limit < 1 {
		return nil, errors.Wrapf(apperrors.ErrInvalidRequest, "[Service.Popular] limit %d", limit)
	}
	var out []Recipe
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := s.client.Get(ctx, pathPopular, query, &out); err != nil {
		return nil, errors.Wrap(err, "[Service.Popular]")
	}
	return out, nil
}

func (s *Service) Recipe(ctx context.Context, id int64) (*Recipe, error) {
	var out Recipe
	if err := s.client.Get(ctx, recipePath(id), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[Service.Recipe] %d", id)
	}
	return &out, nil
}

// Favorites lists the signed-in user's favourite recipes.
func (s *Service) Favorites(ctx context.Context) (*api.PageResult[Recipe], error) {
	var out api.PageResult[Recipe]
	req := api.Request{Method: http.MethodGet, Path: pathFavorites, RequiresAuth: true}
	if err := s.client.Do(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "[Service.Favorites]")
	}
	return &out, nil
}

func (s *Service) Favorite(ctx context.Context, id int64) error {
	return errors.Wrap(s.setFavorite(ctx, id, http.MethodPost), "[Service.Favorite]")
}

func (s *Service) Unfavorite(ctx context.Context, id int64) error {
	return errors.Wrap(s.setFavorite(ctx, id, http.MethodDelete), "[Service.Unfavorite]")
}

func (s *Service) setFavorite(ctx context.Context, id int64, method string) error {
	req := api.Request{Method: method, Path: recipePath(id) + "/favorite", RequiresAuth: true}
	return s.client.Do(ctx, req, nil)
}

func recipePath(id int64) string {
	return pathRecipe + strconv.FormatInt(id, 10)
}
