package query

import (
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// catalogSchemas builds Category <- Subcategory <- Item, with Item also
// belonging to a Brand
func catalogSchemas() map[string]*schema.ResourceSchema {
	category := schema.NewResourceSchema("Category")
	category.AddField("id", schema.TypeInt, false)
	category.AddField("name", schema.TypeString, false)
	category.AddRelationship(&schema.Relationship{
		Type:           schema.RelationshipHasMany,
		TargetResource: "Subcategory",
		FieldName:      "subcategories",
	})

	subcategory := schema.NewResourceSchema("Subcategory")
	subcategory.AddField("id", schema.TypeInt, false)
	subcategory.AddField("name", schema.TypeString, false)
	subcategory.AddField("category_id", schema.TypeInt, true)
	subcategory.AddRelationship(&schema.Relationship{
		Type:           schema.RelationshipBelongsTo,
		TargetResource: "Category",
		FieldName:      "category",
	})
	subcategory.AddRelationship(&schema.Relationship{
		Type:           schema.RelationshipHasMany,
		TargetResource: "Item",
		FieldName:      "items",
	})

	brand := schema.NewResourceSchema("Brand")
	brand.AddField("id", schema.TypeInt, false)
	brand.AddField("name", schema.TypeString, false)

	item := schema.NewResourceSchema("Item")
	item.AddField("id", schema.TypeInt, false)
	item.AddField("name", schema.TypeString, false)
	item.AddField("price", schema.TypeDecimal, true)
	item.AddField("subcategory_id", schema.TypeInt, true)
	item.AddField("brand_id", schema.TypeInt, true)
	item.AddRelationship(&schema.Relationship{
		Type:           schema.RelationshipBelongsTo,
		TargetResource: "Subcategory",
		FieldName:      "subcategory",
	})
	item.AddRelationship(&schema.Relationship{
		Type:           schema.RelationshipBelongsTo,
		TargetResource: "Brand",
		FieldName:      "brand",
	})

	return map[string]*schema.ResourceSchema{
		"Category":    category,
		"Subcategory": subcategory,
		"Brand":       brand,
		"Item":        item,
	}
}
