package asset

// Category identifies a family of scene assets.
// The known organelles below are the closed set the scene ships with;
// other categories are valid as long as a factory is registered for them.
type Category string

const (
	Nucleus              Category = "nucleus"
	Mitochondria         Category = "mitochondria"
	EndoplasmicReticulum Category = "endoplasmic-reticulum"
	Golgi                Category = "golgi"
	Lysosome             Category = "lysosome"
	Ribosome             Category = "ribosome"
	Membrane             Category = "membrane"
	Vacuole              Category = "vacuole"
	Chloroplast          Category = "chloroplast"
)

// KnownCategories lists the built-in categories.
var KnownCategories = []Category{
	Nucleus, Mitochondria, EndoplasmicReticulum, Golgi, Lysosome,
	Ribosome, Membrane, Vacuole, Chloroplast,
}

// Known reports whether c is a built-in category.
func (c Category) Known() bool {
	for _, k := range KnownCategories {
		if k == c {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }
