package model

import "strings"

// Category groups tasks by area. The set is fixed; anything else is shown as CategoryOther.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryUrgent   Category = "urgent"
	CategoryMedical  Category = "medical"
	CategoryOther    Category = "other"
)

// Categories lists the buckets in display order.
var Categories = []Category{
	CategoryWork,
	CategoryPersonal,
	CategoryUrgent,
	CategoryMedical,
	CategoryOther,
}

// Display folds unknown values into CategoryOther. The stored value is left untouched.
func (c Category) Display() Category {
	lower := Category(strings.ToLower(strings.TrimSpace(string(c))))
	for _, known := range Categories {
		if lower == known {
			return known
		}
	}
	return CategoryOther
}

// Label is the capitalized legend text, e.g. "Work".
func (c Category) Label() string {
	s := string(c.Display())
	return strings.ToUpper(s[:1]) + s[1:]
}
