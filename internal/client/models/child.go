package models

// Child is implemented by entities that reference a parent row.
type Child interface {
	Entity
	ParentRefs() []ParentRef
	BindParent(t EntityType, serverID int64)
	BindParentLocal(t EntityType, localID string)
}
