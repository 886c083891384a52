// Package element holds the Element entity, its filterable field catalog
// and the repository that enforces the tree invariants on every write.
package element

import (
	"time"

	"github.com/vantutran2k1/elements/pkg/filter"
)

// Element is a node of an owner's tree. ID is 0 until the store assigns it.
type Element struct {
	ID       int64     `json:"id"`
	ParentID *int64    `json:"parentId"`
	OwnerID  string    `json:"ownerId"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
}

func (e Element) IsRoot() bool { return e.ParentID == nil }

// Filter is a compiled, backend-agnostic condition over elements.
type Filter = filter.Expression[Element]

var (
	FieldID = filter.Field[Element]{
		Name: "id", Path: "element_id", Type: filter.TypeInt64,
		Get: func(e Element) any { return e.ID },
	}
	FieldParentID = filter.Field[Element]{
		Name: "parentId", Path: "parent_element_id", Type: filter.TypeInt64, Nullable: true,
		Get: func(e Element) any {
			if e.ParentID == nil {
				return nil
			}
			return *e.ParentID
		},
	}
	FieldOwnerID = filter.Field[Element]{
		Name: "ownerId", Path: "owner_id", Type: filter.TypeString,
		Get: func(e Element) any { return e.OwnerID },
	}
	FieldType = filter.Field[Element]{
		Name: "type", Path: "type", Type: filter.TypeString,
		Get: func(e Element) any { return e.Type },
	}
	FieldName = filter.Field[Element]{
		Name: "name", Path: "name", Type: filter.TypeString,
		Get: func(e Element) any { return e.Name },
	}
	FieldCreated = filter.Field[Element]{
		Name: "created", Path: "created", Type: filter.TypeTime,
		Get: func(e Element) any { return e.Created },
	}

	// Catalog lists every field a client may filter on.
	Catalog = filter.MustCatalog("element",
		FieldID,
		FieldParentID,
		FieldOwnerID,
		FieldType,
		FieldName,
		FieldCreated,
	)
)
