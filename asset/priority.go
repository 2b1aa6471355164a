package asset

// PriorityFunc derives an entry's eviction priority from its key.
// Higher values are kept longer.
type PriorityFunc func(Key) int32

const (
	basePriority  = 1
	preloadBonus  = 5
	enhancedBonus = 2
	textureBonus  = 1
)

// DefaultPriority scores keys: base 1, preload categories +5 plus their
// distance from the end of the list, enhanced models +2, textures +1.
func DefaultPriority(preload []Category) PriorityFunc {
	rank := make(map[Category]int32, len(preload))
	for i, c := range preload {
		if _, dup := rank[c]; !dup {
			rank[c] = int32(len(preload) - i)
		}
	}
	return func(k Key) int32 {
		p := int32(basePriority)
		if r, ok := rank[k.Category()]; ok {
			p += preloadBonus + r
		}
		if k.Enhanced() {
			p += enhancedBonus
		}
		if k.IsTexture() {
			p += textureBonus
		}
		return p
	}
}
