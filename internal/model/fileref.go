package model

// FileRef points at a file living in a tenant's own cloud storage. Both
// fields are set together or not at all; a half-filled ref is a bug.
type FileRef struct {
	ID  *string `json:"id"`
	URL *string `json:"url"`
}

func NewFileRef(id, url string) FileRef {
	return FileRef{ID: &id, URL: &url}
}

// Valid reports whether the ref holds both fields or neither.
func (f FileRef) Valid() bool {
	return (f.ID == nil) == (f.URL == nil)
}

func (f FileRef) IsZero() bool {
	return f.ID == nil && f.URL == nil
}
