package model

// Tag names are global; associations (user, entry, tag) are user-scoped, so
// the same entry can carry different tags for different users.
type Tag struct {
	ID   int64
	Name string
}
