package enums

import "fmt"

// Category is one of the fixed spending scopes funds are earmarked for.
type Category string

const (
	CategoryHealth      Category = "health"
	CategoryEducation   Category = "education"
	CategoryShelter     Category = "shelter"
	CategorySponsorship Category = "sponsorship"
	CategoryGeneral     Category = "general"
	CategoryRelief      Category = "relief"
)

var validCategories = []Category{
	CategoryHealth,
	CategoryEducation,
	CategoryShelter,
	CategorySponsorship,
	CategoryGeneral,
	CategoryRelief,
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Category.
func (c Category) IsValid() bool {
	for _, candidate := range validCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCategory converts raw input into a Category.
func ParseCategory(value string) (Category, error) {
	for _, candidate := range validCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", value)
}

// Categories returns the fixed categories in reporting order.
func Categories() []Category {
	out := make([]Category, len(validCategories))
	copy(out, validCategories)
	return out
}
