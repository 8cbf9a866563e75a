package repo

import (
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

func catalogSchemas() map[string]*schema.ResourceSchema {
	category := schema.NewResourceSchema("Category")
	category.AddField("id", schema.TypeInt, false)
	category.AddField("name", schema.TypeString, false).Required = true
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

	tag := schema.NewResourceSchema("Tag")
	tag.AddField("id", schema.TypeUUID, false)
	tag.AddField("label", schema.TypeString, false)

	return map[string]*schema.ResourceSchema{
		"Category":    category,
		"Subcategory": subcategory,
		"Tag":         tag,
	}
}
