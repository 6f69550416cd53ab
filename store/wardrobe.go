package store

// Category is the garment layering category. The set is closed; items
// outside it are rejected at construction time.
type Category string

const (
	CategoryUnderwear   Category = "underwear"
	CategoryInnerTop    Category = "inner_top"
	CategoryMidTop      Category = "mid_top"
	CategoryOuterTop    Category = "outer_top"
	CategoryBottom      Category = "bottom"
	CategoryFullBody    Category = "full_body"
	CategoryShoes       Category = "shoes"
	CategorySocks       Category = "socks"
	CategoryAccessories Category = "accessories"
)

// OutfitCategories is the fixed ordered list of categories that take part
// in outfit composition. Underwear and socks are excluded from composition
// but still appear in raw wardrobe catalog views.
var OutfitCategories = []Category{
	CategoryInnerTop,
	CategoryMidTop,
	CategoryOuterTop,
	CategoryBottom,
	CategoryFullBody,
	CategoryShoes,
	CategoryAccessories,
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryUnderwear, CategoryInnerTop, CategoryMidTop, CategoryOuterTop,
		CategoryBottom, CategoryFullBody, CategoryShoes, CategorySocks, CategoryAccessories:
		return true
	}
	return false
}

// Season is a wear-season tag. An item carries a subset of the four.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

// WardrobeItem is one digitized garment. Immutable once embedded except
// through explicit re-embedding.
type WardrobeItem struct {
	Name      string
	Color     string
	Material  string
	ImageRef  string
	Category  Category
	Seasons   []Season
	CreatedTs int64
	UpdatedTs int64
	ID        int64
	OwnerID   int32
}

// HasSeason reports whether the item carries at least one of the given tags.
func (w *WardrobeItem) HasSeason(seasons []Season) bool {
	for _, want := range seasons {
		for _, have := range w.Seasons {
			if want == have {
				return true
			}
		}
	}
	return false
}

type FindWardrobeItem struct {
	ID       *int64
	IDs      []int64
	OwnerID  *int32
	Category *Category
	Limit    *int
	Offset   *int
}

type DeleteWardrobeItem struct {
	ID int64
}
