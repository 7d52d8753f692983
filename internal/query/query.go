// Package query は信頼できないリクエストパラメータを検証済みの
// クエリ記述子（フィルタ・ソート・ページネーション）へ変換する。
// ソート列は許可リストに限定し、数値入力は常に再パース・クランプする。
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

const (
	// DefaultLimit は1ページあたりのデフォルト件数。
	DefaultLimit = 10
	// MaxLimit は1ページあたりの最大件数。これを超えるスキャンは発行しない。
	MaxLimit = 100
)

// Options はエンティティごとのクエリ解析設定。
type Options struct {
	// SortFields は公開ソートフィールド名からSQL列名への許可リスト。
	SortFields map[string]string
	// DefaultSort はsortBy未指定時の公開フィールド名。
	DefaultSort string
	// DefaultOrder はsortOrder未指定時の並び順（"asc" | "desc"）。
	DefaultOrder string
	// SearchColumns はsearchパラメータの部分一致対象となるSQL列。
	SearchColumns []string
}

// Spec は検証済みのクエリ記述子。
// ハンドラー内で直接組み立てず、必ずParseと
// WithFilter/WithSearchを通して構築する。
type Spec struct {
	page       int
	limit      int
	sortColumn string
	sortDesc   bool
	conds      []string
	args       []interface{}
}

// Parse はURLクエリパラメータからSpecを構築する。
// page/limitはクランプのみでエラーにしない。sortBy/sortOrderが
// 許可リスト外の場合はフィールド名を含むバリデーションエラーを返す。
func Parse(values url.Values, opts Options) (*Spec, error) {
	s := &Spec{
		page:  parsePositiveInt(values.Get("page"), 1),
		limit: clampLimit(parsePositiveInt(values.Get("limit"), DefaultLimit)),
	}

	sortBy := values.Get("sortBy")
	if sortBy == "" {
		sortBy = opts.DefaultSort
	}
	column, ok := opts.SortFields[sortBy]
	if !ok {
		return nil, model.NewValidationError("sortBy",
			fmt.Sprintf("sortBy must be one of: %s", strings.Join(sortFieldNames(opts.SortFields), ", ")))
	}
	s.sortColumn = column

	sortOrder := values.Get("sortOrder")
	if sortOrder == "" {
		sortOrder = opts.DefaultOrder
	}
	switch sortOrder {
	case "asc":
		s.sortDesc = false
	case "desc":
		s.sortDesc = true
	default:
		return nil, model.NewValidationError("sortOrder", "sortOrder must be asc or desc")
	}

	if search := strings.TrimSpace(values.Get("search")); search != "" && len(opts.SearchColumns) > 0 {
		s.WithSearch(search, opts.SearchColumns...)
	}

	return s, nil
}

// WithSearch は指定列に対する大文字小文字を区別しない部分一致条件を追加する。
// LIKEメタ文字はエスケープし、検索語をパターンとして解釈させない。
func (s *Spec) WithSearch(term string, columns ...string) *Spec {
	if len(columns) == 0 {
		return s
	}

	s.args = append(s.args, "%"+escapeLike(term)+"%")
	idx := len(s.args)

	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, idx)
	}
	s.conds = append(s.conds, "("+strings.Join(parts, " OR ")+")")
	return s
}

// WithFilter は等値フィルタ条件を追加する。
func (s *Spec) WithFilter(column string, value interface{}) *Spec {
	s.args = append(s.args, value)
	s.conds = append(s.conds, fmt.Sprintf("%s = $%d", column, len(s.args)))
	return s
}

// WithCondition は生のSQL条件を引数付きで追加する。
// プレースホルダは $N 形式で、Nは既存引数の続き番号をNextArgで取得すること。
func (s *Spec) WithCondition(cond string, args ...interface{}) *Spec {
	s.conds = append(s.conds, cond)
	s.args = append(s.args, args...)
	return s
}

// NextArg は次に割り当てられるプレースホルダ番号を返す。
func (s *Spec) NextArg() int {
	return len(s.args) + 1
}

// WhereClause はWHERE句と対応する引数を返す。条件がない場合は空文字列を返す。
// 件数カウントとページ取得は必ず同一のWHERE句・引数を使うこと。
func (s *Spec) WhereClause() (string, []interface{}) {
	if len(s.conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(s.conds, " AND "), s.args
}

// OrderClause はORDER BY句を返す。ソート列は許可リスト由来のため安全。
func (s *Spec) OrderClause() string {
	dir := "ASC"
	if s.sortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s", s.sortColumn, dir)
}

// LimitOffsetClause はLIMIT/OFFSET句を返す。値はクランプ済みの整数のみ。
func (s *Spec) LimitOffsetClause() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", s.limit, s.Offset())
}

// Page は1始まりのページ番号を返す。
func (s *Spec) Page() int { return s.page }

// Limit はクランプ済みの1ページあたり件数を返す。
func (s *Spec) Limit() int { return s.limit }

// Offset は (page-1) * limit を返す。
func (s *Spec) Offset() int { return (s.page - 1) * s.limit }

// Pagination はリスト応答のページネーションメタデータ。
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	Limit       int  `json:"limit"`
}

// NewPagination は総件数からページネーションメタデータを計算する。
func NewPagination(totalCount, page, limit int) Pagination {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Limit:       limit,
	}
}

// parsePositiveInt は文字列を正の整数としてパースする。
// パース不能または1未満の場合はdefaultValを下限1でクランプして返す。
func parsePositiveInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// clampLimit はlimitを[1, MaxLimit]にクランプする。
func clampLimit(n int) int {
	if n > MaxLimit {
		return MaxLimit
	}
	if n < 1 {
		return 1
	}
	return n
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// sortFieldNames は許可リストの公開フィールド名を返す（エラーメッセージ用）。
func sortFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	// mapの走査順は不定のためソートして安定させる
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}
