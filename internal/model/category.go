package model

// CategoryCode identifies one of the registry's unmatched rights-holder lists
type CategoryCode string

const (
	CategoryUA   CategoryCode = "UA"   // Unregistered Artists
	CategoryPUA  CategoryCode = "PUA"  // Partially Unregistered Artists
	CategoryUP   CategoryCode = "UP"   // Unregistered Performers
	CategoryUSRO CategoryCode = "USRO" // Unregistered Sound Recording Owners
)

// Category pairs a code with its display name
type Category struct {
	Code CategoryCode `json:"code"`
	Name string       `json:"name"`
}

var categories = []Category{
	{Code: CategoryUA, Name: "Unregistered Artists"},
	{Code: CategoryPUA, Name: "Partially Unregistered Artists"},
	{Code: CategoryUP, Name: "Unregistered Performers"},
	{Code: CategoryUSRO, Name: "Unregistered Sound Recording Owners"},
}

// Categories returns the fixed category set in query order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryName returns the display name for a code, or the code itself if unknown
func CategoryName(code CategoryCode) string {
	for _, c := range categories {
		if c.Code == code {
			return c.Name
		}
	}
	return string(code)
}

// Outcome classifies a single category query
type Outcome int

const (
	OutcomeOK     Outcome = iota // At least one entry
	OutcomeEmpty                 // Request succeeded, zero entries
	OutcomeFailed                // Transport or decode failure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CategoryResult is the outcome of querying one category for one term.
// Items is empty for both OutcomeEmpty and OutcomeFailed; Err is set only
// for OutcomeFailed.
type CategoryResult struct {
	Category CategoryCode `json:"category"`
	Items    []string     `json:"items"`
	Outcome  Outcome      `json:"-"`
	Err      error        `json:"-"`
}

// NewCategoryResult builds an OK or Empty result from extracted items
func NewCategoryResult(code CategoryCode, items []string) CategoryResult {
	outcome := OutcomeOK
	if len(items) == 0 {
		outcome = OutcomeEmpty
		items = []string{}
	}
	return CategoryResult{Category: code, Items: items, Outcome: outcome}
}

// FailedCategoryResult builds a Failed result carrying the reason
func FailedCategoryResult(code CategoryCode, err error) CategoryResult {
	return CategoryResult{Category: code, Items: []string{}, Outcome: OutcomeFailed, Err: err}
}
