package model

// CategoryKind indicates which transaction kinds a category applies to.
type CategoryKind string

const (
	// CategoryKindIncome is used for money coming in.
	CategoryKindIncome CategoryKind = "income"
	// CategoryKindExpense is used for money going out.
	CategoryKindExpense CategoryKind = "expense"
	// CategoryKindBoth applies to either direction (transfers, adjustments).
	CategoryKindBoth CategoryKind = "both"
)

// Category labels a transaction for reporting.
type Category struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Color string       `json:"color"`
	Icon  string       `json:"icon"`
	Kind  CategoryKind `json:"kind"`
}

// RecordID implements Record.
func (c Category) RecordID() string { return c.ID }

// AppliesTo reports whether the category can label a transaction of the given kind.
func (c Category) AppliesTo(kind TransactionKind) bool {
	switch c.Kind {
	case CategoryKindBoth:
		return true
	case CategoryKindIncome:
		return kind == KindIncome
	case CategoryKindExpense:
		return kind == KindExpense || kind == KindCard
	}
	return false
}

// DefaultCategories is the seed set written on first run when no categories exist.
func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-salary", Name: "Salary", Color: "#4ECDC4", Icon: "briefcase", Kind: CategoryKindIncome},
		{ID: "cat-freelance", Name: "Freelance", Color: "#95E1D3", Icon: "laptop", Kind: CategoryKindIncome},
		{ID: "cat-investments", Name: "Investments", Color: "#3D84A8", Icon: "chart", Kind: CategoryKindIncome},
		{ID: "cat-food", Name: "Food", Color: "#FF6B6B", Icon: "utensils", Kind: CategoryKindExpense},
		{ID: "cat-groceries", Name: "Groceries", Color: "#F38181", Icon: "cart", Kind: CategoryKindExpense},
		{ID: "cat-transport", Name: "Transport", Color: "#FFE66D", Icon: "car", Kind: CategoryKindExpense},
		{ID: "cat-housing", Name: "Housing", Color: "#AA96DA", Icon: "home", Kind: CategoryKindExpense},
		{ID: "cat-utilities", Name: "Utilities", Color: "#FCBAD3", Icon: "bolt", Kind: CategoryKindExpense},
		{ID: "cat-health", Name: "Health", Color: "#A8D8EA", Icon: "heart", Kind: CategoryKindExpense},
		{ID: "cat-leisure", Name: "Leisure", Color: "#FFD3B6", Icon: "music", Kind: CategoryKindExpense},
		{ID: "cat-shopping", Name: "Shopping", Color: "#FFAAA5", Icon: "bag", Kind: CategoryKindExpense},
		{ID: "cat-transfer", Name: "Transfer", Color: "#666666", Icon: "arrows", Kind: CategoryKindBoth},
		{ID: "cat-other", Name: "Other", Color: "#999999", Icon: "dots", Kind: CategoryKindBoth},
	}
}
