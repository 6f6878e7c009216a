package queryengine

// SemanticType is the engine-independent type tag used by the compilers:
// one of string, integer, float, date, boolean (§3).
type SemanticType string

const (
	SemanticString  SemanticType = "string"
	SemanticInteger SemanticType = "integer"
	SemanticFloat   SemanticType = "float"
	SemanticDate    SemanticType = "date"
	SemanticBoolean SemanticType = "boolean"
)

// FilterOp is a filter operator. The allowed set per SemanticType is defined
// in §3's operator table and enforced by filter.go.
type FilterOp string

const (
	OpEqual        FilterOp = "="
	OpNotEqual     FilterOp = "!="
	OpGreaterThan  FilterOp = ">"
	OpLessThan     FilterOp = "<"
	OpGreaterEqual FilterOp = ">="
	OpLessEqual    FilterOp = "<="
	OpContains     FilterOp = "contains"
	OpStartsWith   FilterOp = "starts_with"
	OpEndsWith     FilterOp = "ends_with"
	OpIsNull       FilterOp = "is_null"
	OpIsNotNull    FilterOp = "is_not_null"
)

// SortDirection is ASC or DESC.
type SortDirection string

const (
	DirAsc  SortDirection = "asc"
	DirDesc SortDirection = "desc"
)

func (d SortDirection) sql() string {
	if d == DirDesc {
		return "DESC"
	}
	return "ASC"
}

// ColumnDescriptor describes one column as produced on demand from the SQL
// engine's catalog (§3).
type ColumnDescriptor struct {
	Name         string       `json:"name"`
	StorageType  string       `json:"storageType"`
	SemanticType SemanticType `json:"semanticType"`
}

// ColumnRegistry maps a column name to its descriptor, preserving the
// dataset's declared column order.
type ColumnRegistry struct {
	Order   []string
	ByName  map[string]ColumnDescriptor
}

// NewColumnRegistry builds a registry from an ordered descriptor slice.
func NewColumnRegistry(cols []ColumnDescriptor) *ColumnRegistry {
	reg := &ColumnRegistry{
		Order:  make([]string, 0, len(cols)),
		ByName: make(map[string]ColumnDescriptor, len(cols)),
	}
	for _, c := range cols {
		reg.Order = append(reg.Order, c.Name)
		reg.ByName[c.Name] = c
	}
	return reg
}

// Lookup returns the descriptor for name, or (false) if it isn't a column of
// this dataset.
func (r *ColumnRegistry) Lookup(name string) (ColumnDescriptor, bool) {
	c, ok := r.ByName[name]
	return c, ok
}

// Filter is one predicate term (§3).
type Filter struct {
	Column   string   `json:"column"`
	Operator FilterOp `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// AggOp is an aggregation function.
type AggOp string

const (
	AggCount AggOp = "count"
	AggSum   AggOp = "sum"
	AggAvg   AggOp = "avg"
	AggMin   AggOp = "min"
	AggMax   AggOp = "max"
)

// Aggregation is one SELECT-list aggregate term (§3).
type Aggregation struct {
	Op     AggOp  `json:"op"`
	Column string `json:"column"`
	As     string `json:"as,omitempty"`
}

// Alias returns the output alias, defaulting to "<op>_<column>" with "*"
// mapped to "all".
func (a Aggregation) Alias() string {
	if a.As != "" {
		return a.As
	}
	col := a.Column
	if col == "*" {
		col = "all"
	}
	return string(a.Op) + "_" + col
}

// HavingOp is a comparison operator allowed in a HAVING clause.
type HavingOp string

const (
	HavingEqual        HavingOp = "="
	HavingNotEqual     HavingOp = "!="
	HavingGreaterThan  HavingOp = ">"
	HavingLessThan     HavingOp = "<"
	HavingGreaterEqual HavingOp = ">="
	HavingLessEqual    HavingOp = "<="
)

// HavingItem filters on an aggregation alias (§3).
type HavingItem struct {
	Metric   string   `json:"metric"`
	Operator HavingOp `json:"operator"`
	Value    any      `json:"value"`
}

// SortItem is one ORDER BY term (§3).
type SortItem struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// TableQuerySpec is the structured request compiled by the Table-Query
// Compiler (C5, §4.5).
type TableQuerySpec struct {
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Having       []HavingItem  `json:"having,omitempty"`
	Sort         []SortItem    `json:"sort,omitempty"`
	Limit        int           `json:"limit"`
}

// TableQueryResult is the compiled query's output (§4.5).
type TableQueryResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"rowCount"`
	GeneratedSQL    string           `json:"generatedSql"`
	GeneratedPython string           `json:"generatedPython"`
}

// PageRequest is the input to the Page Reader (C4, §4.4).
type PageRequest struct {
	DatasetID    string
	Page         int
	PageSize     int
	SortColumn   string
	SortDir      SortDirection
	Filters      []Filter
	Cursor       string
}

// PageResult is the Page Reader's output (§4.4).
type PageResult struct {
	Rows          []map[string]any `json:"rows"`
	Columns       []string         `json:"columns"`
	TotalRows     int              `json:"totalRows"`
	FilteredRows  int              `json:"filteredRows"`
	Page          int              `json:"page"`
	PageSize      int              `json:"pageSize"`
	TotalPages    int              `json:"totalPages"`
	NextCursor    string           `json:"nextCursor,omitempty"`
	PrevCursor    string           `json:"prevCursor,omitempty"`
}

// SchemaColumn is one entry in a GetSchema response (§4.6).
type SchemaColumn struct {
	Name        string       `json:"name"`
	Type        SemanticType `json:"type"`
	NullCount   int          `json:"nullCount"`
	TotalCount  int          `json:"totalCount"`
	UniqueCount int          `json:"uniqueCount"`
	Sparkline   []int        `json:"sparkline"`
}

// SchemaResult is the GetSchema response (§4.6, §6).
type SchemaResult struct {
	Columns  []SchemaColumn `json:"columns"`
	RowCount int            `json:"rowCount"`
}

// ImportRequest is the body of POST /api/datasets/import (§6).
type ImportRequest struct {
	ImportID         string   `json:"importId"`
	SelectedEntities []string `json:"selectedEntities"`
	ImportMode       string   `json:"importMode"` // "selected" | "all"
	DatasetNameMode  string   `json:"datasetNameMode"` // "filename_entity" | "entity_only"
}

// DatasetSummary describes one successfully-registered dataset.
type DatasetSummary struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	RowCount int                `json:"rowCount"`
	Columns  []ColumnDescriptor `json:"columns"`
}

// DiscoverResult is the response of POST /api/datasets/discover (§6).
type DiscoverResult struct {
	ImportID          string   `json:"importId"`
	Name              string   `json:"name"`
	Format            string   `json:"format"`
	Entities          []string `json:"entities"`
	RequiresSelection bool     `json:"requiresSelection"`
}

// ImportResult is the response of POST /api/datasets/import (§6).
type ImportResult struct {
	ImportID string           `json:"importId"`
	Datasets []DatasetSummary `json:"datasets"`
}
