package filter

import (
	"time"
)

type item struct {
	ID     int64
	Parent *int64
	Name   string
	At     time.Time
}

func int64p(v int64) *int64 { return &v }

var testCatalog = MustCatalog("item",
	Field[item]{Name: "id", Path: "item_id", Type: TypeInt64, Get: func(i item) any { return i.ID }},
	Field[item]{Name: "parentId", Path: "parent_id", Type: TypeInt64, Nullable: true, Get: func(i item) any {
		if i.Parent == nil {
			return nil
		}
		return *i.Parent
	}},
	Field[item]{Name: "name", Path: "name", Type: TypeString, Get: func(i item) any { return i.Name }},
	Field[item]{Name: "at", Path: "at", Type: TypeTime, Get: func(i item) any { return i.At }},
)
