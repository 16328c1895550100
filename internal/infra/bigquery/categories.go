package bigquery

import "cloud.google.com/go/bigquery"

// CategoryRow is one entry of the spending category taxonomy.
type CategoryRow struct {
	CategoryID      string              `bigquery:"category_id"`      // REQUIRED
	CategoryName    string              `bigquery:"category_name"`    // REQUIRED
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"` // NULLABLE
	Slug            string              `bigquery:"slug"`             // REQUIRED
	IsActive        bigquery.NullBool   `bigquery:"is_active"`        // NULLABLE
}

// DisplayName is "Category / Subcategory", or just the category.
func (c CategoryRow) DisplayName() string {
	if c.SubcategoryName.Valid && c.SubcategoryName.StringVal != "" {
		return c.CategoryName + " / " + c.SubcategoryName.StringVal
	}
	return c.CategoryName
}

// CategoryNames returns the display names of rows without duplicates, in order.
func CategoryNames(rows []CategoryRow) []string {
	seen := make(map[string]bool, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		name := r.DisplayName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
