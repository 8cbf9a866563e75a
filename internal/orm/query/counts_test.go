package query

import (
	"errors"
	"testing"
)

func TestWithAssociationCounts(t *testing.T) {
	schemas := catalogSchemas()

	qb := NewQueryBuilder(schemas["Category"], schemas)
	if err := qb.WithAssociationCounts("subcategories"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sql, _, err := qb.ToSQL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "SELECT categories.*, (SELECT COUNT(*) FROM subcategories AS cnt_subcategories" +
		" WHERE cnt_subcategories.category_id = categories.id) AS subcategories_count FROM categories"
	if sql != expected {
		t.Errorf("expected SQL:\n%s\ngot:\n%s", expected, sql)
	}
}

func TestWithAssociationCounts_Multiple(t *testing.T) {
	schemas := catalogSchemas()

	qb, _ := Build(schemas["Subcategory"], schemas, Filter{"category": Filter{"name": "Office"}})
	if err := qb.WithAssociationCounts("items", "category", "items"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := qb.Counts()
	if len(counts) != 2 {
		t.Fatalf("expected 2 counts (duplicates collapsed), got %d", len(counts))
	}
	if counts[0].Field != "items_count" || counts[1].Field != "category_count" {
		t.Errorf("unexpected count fields: %s, %s", counts[0].Field, counts[1].Field)
	}

	sql, args, _ := qb.ToSQL()
	expected := "SELECT subcategories.*" +
		", (SELECT COUNT(*) FROM items AS cnt_items WHERE cnt_items.subcategory_id = subcategories.id) AS items_count" +
		", (SELECT COUNT(*) FROM categories AS cnt_category WHERE cnt_category.id = subcategories.category_id) AS category_count" +
		" FROM subcategories" +
		" LEFT JOIN categories AS category ON category.id = subcategories.category_id" +
		" WHERE category.name = $1"
	if sql != expected {
		t.Errorf("expected SQL:\n%s\ngot:\n%s", expected, sql)
	}
	if len(args) != 1 || args[0] != "Office" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestWithAssociationCounts_OrderByCount(t *testing.T) {
	schemas := catalogSchemas()

	qb := NewQueryBuilder(schemas["Category"], schemas)
	qb.WithAssociationCounts("subcategories")
	qb.OrderByDesc("subcategories_count")

	sql, _, err := qb.ToSQL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	suffix := " ORDER BY subcategories_count DESC"
	if len(sql) < len(suffix) || sql[len(sql)-len(suffix):] != suffix {
		t.Errorf("unexpected SQL: %s", sql)
	}
}

func TestWithAssociationCounts_Rejected(t *testing.T) {
	schemas := catalogSchemas()

	tests := []struct {
		name    string
		assoc   string
		wantErr error
	}{
		{"dotted path", "subcategory.category", ErrIndirectAssociation},
		{"association of a related resource", "category", ErrIndirectAssociation},
		{"not an association anywhere", "warehouse", ErrUnknownAssociation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := NewQueryBuilder(schemas["Item"], schemas)
			err := qb.WithAssociationCounts(tt.assoc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(qb.Counts()) != 0 {
				t.Errorf("rejected association must not add a count")
			}
		})
	}
}
