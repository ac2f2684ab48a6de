package engine

// ConfigField describes one recognized key in a block's config map, for
// the informational block catalog exposed to callers building workflows.
// The catalog does not constrain Execute: a block is free to accept
// whatever keys its config map happens to carry.
type ConfigField struct {
	Name     string
	Type     string
	Default  any
	Required bool
	Enum     []string
}

// CatalogEntry describes one block kind for display purposes: a name,
// description, a color hint for UI rendering, and its recognized config
// fields.
type CatalogEntry struct {
	Kind        BlockKind
	Name        string
	Description string
	Color       string
	Config      []ConfigField
}

// Catalog is the static, closed list of block kinds the engine can run.
var Catalog = []CatalogEntry{
	{
		Kind:        KindReadCSV,
		Name:        "Read CSV",
		Description: "Reads a CSV file into a tabular frame.",
		Color:       "#4C8BF5",
		Config: []ConfigField{
			{Name: "file_path", Type: "string", Required: true},
		},
	},
	{
		Kind:        KindSaveCSV,
		Name:        "Save CSV",
		Description: "Writes the current frame to a CSV file.",
		Color:       "#34A853",
		Config: []ConfigField{
			{Name: "file_name", Type: "string", Default: "output.csv"},
		},
	},
	{
		Kind:        KindFilter,
		Name:        "Filter",
		Description: "Keeps only rows matching a column condition.",
		Color:       "#FBBC05",
		Config: []ConfigField{
			{Name: "column", Type: "string", Required: true},
			{Name: "operator", Type: "string", Default: "contains", Enum: []string{
				"contains", "equals", "not_equals", "greater_than", "less_than",
				"is_true", "is_false", "is_null", "is_not_null",
			}},
			{Name: "value", Type: "any", Default: ""},
			{Name: "case_sensitive", Type: "bool", Default: false},
		},
	},
	{
		Kind:        KindEnrichLead,
		Name:        "Enrich Lead",
		Description: "Fans out concurrent lead enrichment calls, writing enriched_* columns.",
		Color:       "#EA4335",
		Config: []ConfigField{
			{Name: "struct", Type: "object", Default: map[string]any{}},
			{Name: "name_column", Type: "string", Default: "name"},
			{Name: "company_column", Type: "string", Default: "company"},
			{Name: "linkedin_column", Type: "string", Default: "linkedin"},
			{Name: "max_concurrent", Type: "int", Default: 1},
			{Name: "batch_size", Type: "int", Default: 1},
		},
	},
	{
		Kind:        KindFindEmail,
		Name:        "Find Email",
		Description: "Fans out concurrent email discovery calls for rows missing one.",
		Color:       "#A142F4",
		Config: []ConfigField{
			{Name: "mode", Type: "string", Default: "PROFESSIONAL"},
			{Name: "name_column", Type: "string", Default: "name"},
			{Name: "company_column", Type: "string", Default: "company"},
			{Name: "linkedin_column", Type: "string", Default: "linkedin"},
			{Name: "output_column", Type: "string", Default: "found_email"},
			{Name: "skip_existing", Type: "bool", Default: true},
			{Name: "max_concurrent", Type: "int", Default: 10},
			{Name: "batch_size", Type: "int", Default: 10},
		},
	},
}
