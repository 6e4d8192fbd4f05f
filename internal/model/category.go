package model

// Category identifies one of the four research tracks. Every raw and
// curated document collection is addressed by a Category tag rather
// than a free-form string key.
type Category string

const (
	CategoryCompany   Category = "company"
	CategoryFinancial Category = "financial"
	CategoryIndustry  Category = "industry"
	CategoryNews      Category = "news"
)

// Categories returns all research categories in report order. The
// slice is freshly allocated on each call so callers may reorder it.
func Categories() []Category {
	return []Category{CategoryCompany, CategoryIndustry, CategoryFinancial, CategoryNews}
}

// Label returns a human-readable name for progress messages.
func (c Category) Label() string {
	switch c {
	case CategoryCompany:
		return "Company"
	case CategoryFinancial:
		return "Financial"
	case CategoryIndustry:
		return "Industry"
	case CategoryNews:
		return "News"
	default:
		return string(c)
	}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCompany, CategoryFinancial, CategoryIndustry, CategoryNews:
		return true
	}
	return false
}
