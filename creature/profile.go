package creature

import (
	"math"
	"strings"
)

// Type 生物种类标签（线上以字符串传输）
type Type string

const (
	Lizard Type = "Lizard"
	Frog   Type = "Frog"
	Snake  Type = "Snake"
)

// DefaultType 未知种类时回落的基础种类
const DefaultType = Lizard

// PartSpec 身体分组（仅用于渲染分组，不参与链条计算）
type PartSpec struct {
	Name  string
	Radii []int
}

// Profile 每种生物的固定参数
type Profile struct {
	Type    Type
	Parts   []PartSpec
	MaxTurn float64 // 相邻节段之间允许的最大转角（弧度）
	Speed   float64 // 头部移动速度（单位/秒）
	Spacing float64 // 初始摆放时沿 -Y 方向的节段间距
}

func deg(d float64) float64 { return d * math.Pi / 180 }

var profiles = map[Type]Profile{
	Lizard: {
		Type: Lizard,
		Parts: []PartSpec{
			{Name: "Head", Radii: []int{60}},
			{Name: "Body", Radii: []int{20, 25, 25, 25}},
			{Name: "Tail", Radii: []int{20, 18, 16, 14, 12, 10, 8, 6, 4, 2}},
		},
		MaxTurn: deg(40),
		Speed:   200,
		Spacing: 25,
	},
	Snake: {
		Type: Snake,
		Parts: []PartSpec{
			{Name: "Head", Radii: []int{20}},
			{Name: "Body", Radii: []int{25, 25, 25, 25, 25}},
		},
		MaxTurn: deg(30),
		Speed:   200,
		Spacing: 25,
	},
	Frog: {
		Type: Frog,
		Parts: []PartSpec{
			{Name: "Head", Radii: []int{30}},
			{Name: "Body", Radii: []int{26, 22}},
		},
		MaxTurn: deg(60),
		Speed:   150,
		Spacing: 24,
	},
}

// Types 返回全部已知种类（固定顺序）
func Types() []Type {
	return []Type{Lizard, Frog, Snake}
}

// ParseType 解析种类名，大小写不敏感；未知名称返回 DefaultType 与 false
func ParseType(s string) (Type, bool) {
	for _, t := range Types() {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, true
		}
	}
	return DefaultType, false
}

// TypeForSegments 按节段数反查种类；各种类节段数互不相同
func TypeForSegments(n int) (Type, bool) {
	for _, t := range Types() {
		if profiles[t].SegmentCount() == n {
			return t, true
		}
	}
	return DefaultType, false
}

// ProfileOf 返回种类参数；未知种类回落到 DefaultType
func ProfileOf(t Type) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return profiles[DefaultType]
}

// Radii 展平后的全部节段半径（头到尾）
func (p Profile) Radii() []int {
	var out []int
	for _, part := range p.Parts {
		out = append(out, part.Radii...)
	}
	return out
}

// SegmentCount 节段总数
func (p Profile) SegmentCount() int {
	n := 0
	for _, part := range p.Parts {
		n += len(part.Radii)
	}
	return n
}
