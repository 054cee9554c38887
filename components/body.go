package components

// Body holds physical properties of an entity. Radius tracks stored energy
// between the configured size bounds.
type Body struct {
	Radius float32
}
