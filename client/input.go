package client

import "creaturenet/creature"

// TargetSource 每个 tick 提供一次移动目标（意图）；交互式输入层在外部实现
type TargetSource interface {
	Target(elapsed float64) creature.Vec2
}

// TargetFunc 函数适配器
type TargetFunc func(elapsed float64) creature.Vec2

func (f TargetFunc) Target(elapsed float64) creature.Vec2 { return f(elapsed) }

// Orbit 绕 Center 做匀速圆周运动，AngularSpeed 单位为弧度/秒
type Orbit struct {
	Center       creature.Vec2
	Radius       float64
	AngularSpeed float64
}

func (o Orbit) Target(elapsed float64) creature.Vec2 {
	return o.Center.Add(creature.FromAngle(elapsed * o.AngularSpeed).Scale(o.Radius))
}

// Fixed 固定目标点
type Fixed struct {
	Point creature.Vec2
}

func (f Fixed) Target(float64) creature.Vec2 { return f.Point }

// None 没有输入：头部保持不动
type None struct{}

func (None) Target(float64) creature.Vec2 { return creature.NoTarget }
