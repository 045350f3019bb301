package models

// Category 振动健康等级
type Category int

const (
	CategoryBelowThreshold Category = iota
	CategoryGood
	CategorySatisfactory
	CategoryUnsatisfactory
	CategoryUnacceptable
)

func (c Category) String() string {
	switch c {
	case CategoryGood:
		return "good"
	case CategorySatisfactory:
		return "satisfactory"
	case CategoryUnsatisfactory:
		return "unsatisfactory"
	case CategoryUnacceptable:
		return "unacceptable"
	default:
		return "below_threshold"
	}
}
