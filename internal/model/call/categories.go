package call

import "github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"

// CategorySet 按首次出现顺序记录被索取的信息类别，只增不减。
type CategorySet struct {
	order []disclosure.Category
	seen  map[disclosure.Category]struct{}
}

// NewCategorySet returns an empty set.
func NewCategorySet() *CategorySet {
	return &CategorySet{seen: make(map[disclosure.Category]struct{})}
}

// Add inserts c and reports whether it was new.
func (s *CategorySet) Add(c disclosure.Category) bool {
	if _, ok := s.seen[c]; ok {
		return false
	}
	s.seen[c] = struct{}{}
	s.order = append(s.order, c)
	return true
}

// AddAll 依次插入并返回其中新出现的类别。
func (s *CategorySet) AddAll(categories []disclosure.Category) []disclosure.Category {
	var added []disclosure.Category
	for _, c := range categories {
		if s.Add(c) {
			added = append(added, c)
		}
	}
	return added
}

func (s *CategorySet) Contains(c disclosure.Category) bool {
	_, ok := s.seen[c]
	return ok
}

func (s *CategorySet) Len() int {
	return len(s.order)
}

// List returns a copy in insertion order.
func (s *CategorySet) List() []disclosure.Category {
	return append([]disclosure.Category(nil), s.order...)
}
