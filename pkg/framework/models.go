package framework

// Function is the root level of the control framework (e.g. "ID", "PR").
type Function struct {
	ID   int64  `gorm:"primaryKey;column:id" json:"id" yaml:"id"`
	Code string `gorm:"column:code;size:16;not null" json:"code" yaml:"code"`
	Name string `gorm:"column:name;not null" json:"name" yaml:"name"`
}

// TableName returns the GORM table name.
func (Function) TableName() string { return "functions" }

// Category belongs to exactly one Function.
type Category struct {
	ID         int64  `gorm:"primaryKey;column:id" json:"id" yaml:"id"`
	Code       string `gorm:"column:code;size:16;not null" json:"code" yaml:"code"`
	Name       string `gorm:"column:name;not null" json:"name" yaml:"name"`
	FunctionID int64  `gorm:"column:function_id;index;not null" json:"functionId" yaml:"functionId"`
}

// TableName returns the GORM table name.
func (Category) TableName() string { return "categories" }

// Subcategory is a leaf control point. FunctionID duplicates the owning
// category's function for query convenience and is not enforced by a
// foreign key; FindInconsistent reports rows where the two disagree.
type Subcategory struct {
	ID          int64  `gorm:"primaryKey;column:id" json:"id" yaml:"id"`
	Code        string `gorm:"column:code;size:16;not null" json:"code" yaml:"code"`
	Description string `gorm:"column:description;type:text" json:"description" yaml:"description"`
	CategoryID  int64  `gorm:"column:category_id;index;not null" json:"categoryId" yaml:"categoryId"`
	FunctionID  int64  `gorm:"column:function_id;index;not null" json:"functionId" yaml:"functionId"`
}

// TableName returns the GORM table name.
func (Subcategory) TableName() string { return "subcategories" }

// Models lists the reference tables for auto-migration.
func Models() []any {
	return []any{&Function{}, &Category{}, &Subcategory{}}
}

// FormatStatus tells callers how much of a FormattedInfo can be trusted.
type FormatStatus string

const (
	// StatusOK means every link of the hierarchy was resolved.
	StatusOK FormatStatus = "ok"
	// StatusIncomplete means the subcategory exists but its category or
	// function link is dangling; missing codes are rendered as "??".
	StatusIncomplete FormatStatus = "incomplete"
	// StatusNotFound means no subcategory has the requested id.
	StatusNotFound FormatStatus = "not_found"
	// StatusError means the lookup failed and nothing is known about the id.
	StatusError FormatStatus = "error"
)

// FormattedInfo is the human-readable rendering of one subcategory.
type FormattedInfo struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code"`
	Description  string       `json:"description"`
	FunctionCode string       `json:"functionCode"`
	CategoryCode string       `json:"categoryCode"`
	Status       FormatStatus `json:"status"`
}

// HierarchyRow is one row of the subcategory → category → function join.
// Pointer columns are NULL when a link in the chain is missing.
type HierarchyRow struct {
	SubcategoryID      int64   `gorm:"column:subcategory_id"`
	SubcategoryCode    string  `gorm:"column:subcategory_code"`
	Description        string  `gorm:"column:description"`
	SubcategoryFuncID  int64   `gorm:"column:subcategory_function_id"`
	CategoryID         *int64  `gorm:"column:category_id"`
	CategoryCode       *string `gorm:"column:category_code"`
	CategoryFunctionID *int64  `gorm:"column:category_function_id"`
	FunctionID         *int64  `gorm:"column:function_id"`
	FunctionCode       *string `gorm:"column:function_code"`
}

// Inconsistency describes a subcategory whose hierarchy links disagree.
type Inconsistency struct {
	SubcategoryID      int64  `json:"subcategoryId"`
	SubcategoryCode    string `json:"subcategoryCode"`
	FunctionID         int64  `json:"functionId"`
	CategoryID         int64  `json:"categoryId"`
	CategoryFunctionID *int64 `json:"categoryFunctionId,omitempty"`
	Problem            string `json:"problem"`
}
