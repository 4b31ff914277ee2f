package creature

import "math"

// Vec2 二维浮点向量（世界坐标）
type Vec2 struct {
	X float64
	Y float64
}

// NoTarget 表示本帧没有移动目标
var NoTarget = Vec2{X: math.NaN(), Y: math.NaN()}

// UnitX 默认方向
var UnitX = Vec2{X: 1}

// FromAngle 由弧度构造单位向量
func FromAngle(rad float64) Vec2 {
	return Vec2{math.Cos(rad), math.Sin(rad)}
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

func (v Vec2) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Equal 分量精确相等（NaN 与任何值都不相等）
func (v Vec2) Equal(o Vec2) bool { return v == o }

func (v Vec2) IsNaN() bool { return math.IsNaN(v.X) || math.IsNaN(v.Y) }

func (v Vec2) IsFinite() bool {
	return !v.IsNaN() && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Normalize 返回单位向量；零长度、NaN 或无穷时 ok 为 false
func (v Vec2) Normalize() (Vec2, bool) {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec2{}, false
	}
	return Vec2{v.X / l, v.Y / l}, true
}

// WrapAngle 将角度折算到 (-π, π]
func WrapAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
