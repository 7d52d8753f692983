package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

var testOptions = Options{
	SortFields: map[string]string{
		"name":      "name",
		"createdAt": "created_at",
	},
	DefaultSort:   "createdAt",
	DefaultOrder:  "desc",
	SearchColumns: []string{"name", "description"},
}

func TestParse_Defaults(t *testing.T) {
	spec, err := Parse(url.Values{}, testOptions)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if spec.Page() != 1 {
		t.Errorf("Page() = %d, want 1", spec.Page())
	}
	if spec.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", spec.Limit(), DefaultLimit)
	}
	if got := spec.OrderClause(); got != "ORDER BY created_at DESC" {
		t.Errorf("OrderClause() = %q, want %q", got, "ORDER BY created_at DESC")
	}
}

func TestParse_PageClamping(t *testing.T) {
	tests := []struct {
		name string
		page string
		want int
	}{
		{"empty defaults to 1", "", 1},
		{"valid page", "5", 5},
		{"zero clamps to 1", "0", 1},
		{"negative clamps to 1", "-3", 1},
		{"non-numeric clamps to 1", "abc", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			if tt.page != "" {
				values.Set("page", tt.page)
			}

			spec, err := Parse(values, testOptions)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if spec.Page() != tt.want {
				t.Errorf("Page() = %d, want %d", spec.Page(), tt.want)
			}
		})
	}
}

func TestParse_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit string
		want  int
	}{
		{"empty defaults", "", DefaultLimit},
		{"valid limit", "25", 25},
		{"zero clamps to 1", "0", 1},
		{"negative clamps to 1", "-10", 1},
		{"above max clamps to max", "500", MaxLimit},
		{"non-numeric clamps to 1", "xyz", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			if tt.limit != "" {
				values.Set("limit", tt.limit)
			}

			spec, err := Parse(values, testOptions)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if spec.Limit() != tt.want {
				t.Errorf("Limit() = %d, want %d", spec.Limit(), tt.want)
			}
		})
	}
}

func TestParse_UnknownSortField_ReturnsValidationError(t *testing.T) {
	values := url.Values{}
	// SQL断片をソート指定として送り込めないこと
	values.Set("sortBy", "name; DROP TABLE categories")

	_, err := Parse(values, testOptions)
	if err == nil {
		t.Fatal("expected error for unknown sortBy")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidationFailed)
	}
	if apiErr.Field != "sortBy" {
		t.Errorf("Field = %q, want %q", apiErr.Field, "sortBy")
	}
}

func TestParse_InvalidSortOrder_ReturnsValidationError(t *testing.T) {
	values := url.Values{}
	values.Set("sortOrder", "sideways")

	_, err := Parse(values, testOptions)
	if err == nil {
		t.Fatal("expected error for invalid sortOrder")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Field != "sortOrder" {
		t.Errorf("Field = %q, want %q", apiErr.Field, "sortOrder")
	}
}

func TestParse_SortAscending(t *testing.T) {
	values := url.Values{}
	values.Set("sortBy", "name")
	values.Set("sortOrder", "asc")

	spec, err := Parse(values, testOptions)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := spec.OrderClause(); got != "ORDER BY name ASC" {
		t.Errorf("OrderClause() = %q, want %q", got, "ORDER BY name ASC")
	}
}

func TestParse_SearchTerm_AddsILIKECondition(t *testing.T) {
	values := url.Values{}
	values.Set("search", "groceries")

	spec, err := Parse(values, testOptions)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	where, args := spec.WhereClause()
	if !strings.Contains(where, "name ILIKE $1") || !strings.Contains(where, "description ILIKE $1") {
		t.Errorf("WhereClause() = %q, want ILIKE conditions on both columns", where)
	}
	if len(args) != 1 {
		t.Fatalf("args length = %d, want 1", len(args))
	}
	if args[0] != "%groceries%" {
		t.Errorf("args[0] = %v, want %q", args[0], "%groceries%")
	}
}

func TestWithSearch_EscapesLikeMetaCharacters(t *testing.T) {
	spec := &Spec{}
	spec.WithSearch("50%_done", "content")

	_, args := spec.WhereClause()
	if len(args) != 1 {
		t.Fatalf("args length = %d, want 1", len(args))
	}
	want := `%50\%\_done%`
	if args[0] != want {
		t.Errorf("args[0] = %v, want %q", args[0], want)
	}
}

func TestWithFilter_NumbersPlaceholdersSequentially(t *testing.T) {
	spec := &Spec{}
	spec.WithFilter("done", true)
	spec.WithFilter("color", "primary")

	where, args := spec.WhereClause()
	if where != "WHERE done = $1 AND color = $2" {
		t.Errorf("WhereClause() = %q", where)
	}
	if len(args) != 2 {
		t.Fatalf("args length = %d, want 2", len(args))
	}
}

func TestWithCondition_UsesNextArg(t *testing.T) {
	spec := &Spec{}
	spec.WithFilter("done", false)

	if got := spec.NextArg(); got != 2 {
		t.Fatalf("NextArg() = %d, want 2", got)
	}
	spec.WithCondition("category_id = $2", "cat-1")

	where, args := spec.WhereClause()
	if where != "WHERE done = $1 AND category_id = $2" {
		t.Errorf("WhereClause() = %q", where)
	}
	if len(args) != 2 {
		t.Errorf("args length = %d, want 2", len(args))
	}
}

func TestWhereClause_NoConditions_ReturnsEmpty(t *testing.T) {
	spec := &Spec{}

	where, args := spec.WhereClause()
	if where != "" {
		t.Errorf("WhereClause() = %q, want empty", where)
	}
	if args != nil {
		t.Errorf("args = %v, want nil", args)
	}
}

func TestOffset_ComputedFromPageAndLimit(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("limit", "20")

	spec, err := Parse(values, testOptions)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if spec.Offset() != 40 {
		t.Errorf("Offset() = %d, want 40", spec.Offset())
	}
	if got := spec.LimitOffsetClause(); got != "LIMIT 20 OFFSET 40" {
		t.Errorf("LimitOffsetClause() = %q", got)
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		totalCount int
		page       int
		limit      int
		want       Pagination
	}{
		{
			name: "empty result set", totalCount: 0, page: 1, limit: 10,
			want: Pagination{CurrentPage: 1, TotalPages: 0, TotalCount: 0, HasNextPage: false, HasPrevPage: false, Limit: 10},
		},
		{
			name: "single partial page", totalCount: 7, page: 1, limit: 10,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalCount: 7, HasNextPage: false, HasPrevPage: false, Limit: 10},
		},
		{
			name: "middle page", totalCount: 45, page: 2, limit: 10,
			want: Pagination{CurrentPage: 2, TotalPages: 5, TotalCount: 45, HasNextPage: true, HasPrevPage: true, Limit: 10},
		},
		{
			name: "last page", totalCount: 45, page: 5, limit: 10,
			want: Pagination{CurrentPage: 5, TotalPages: 5, TotalCount: 45, HasNextPage: false, HasPrevPage: true, Limit: 10},
		},
		{
			name: "page beyond range", totalCount: 10, page: 9, limit: 10,
			want: Pagination{CurrentPage: 9, TotalPages: 1, TotalCount: 10, HasNextPage: false, HasPrevPage: true, Limit: 10},
		},
		{
			name: "exact page boundary", totalCount: 30, page: 3, limit: 10,
			want: Pagination{CurrentPage: 3, TotalPages: 3, TotalCount: 30, HasNextPage: false, HasPrevPage: true, Limit: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPagination(tt.totalCount, tt.page, tt.limit)
			if got != tt.want {
				t.Errorf("NewPagination() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
