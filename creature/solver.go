package creature

import "math"

// Epsilon 向量长度低于该值视为零向量
const Epsilon = 1e-9

// Chain 求解器的输入输出：节段位置会被原地修改
type Chain struct {
	Positions []Vec2
	Radii     []int
	MaxTurn   float64
	Speed     float64
	// Heading 上一帧的头部朝向，目标退化时沿用
	Heading Vec2
}

// Step 推进一帧：头部朝 target 移动，其余节段依次跟随并受最大转角约束。
// target 为 NaN 或与头部重合时头部不平移，朝向保持不变。
func Step(c *Chain, target Vec2, dt float64) {
	if len(c.Positions) == 0 {
		return
	}
	if !c.Heading.IsFinite() {
		c.Heading = UnitX
	}
	if h, ok := c.Heading.Normalize(); ok {
		c.Heading = h
	} else {
		c.Heading = UnitX
	}

	head := c.Positions[0]
	if !head.IsFinite() {
		// 头部已损坏时无可用的上一位置，回到原点附近重新开始
		head = Vec2{}
	}
	if dir, ok := target.Sub(head).Normalize(); ok && target.IsFinite() && dt > 0 && !math.IsNaN(dt) {
		step := c.Speed * dt
		// 不越过目标，避免在目标附近来回抖动
		if d := target.Dist(head); step > d {
			step = d
		}
		next := head.Add(dir.Scale(step))
		if next.IsFinite() {
			head = next
			c.Heading = dir
		}
	}
	c.Positions[0] = head

	Solve(c.Positions, c.Radii, c.MaxTurn, c.Heading)
}

// Solve 从头到尾单遍重建链条：positions[i] 与 positions[i-1] 的距离恒为 radii[i]，
// 且 i>=2 时相邻两段方向夹角不超过 maxTurn。heading 用于第一段的零长度回落。
func Solve(positions []Vec2, radii []int, maxTurn float64, heading Vec2) {
	if maxTurn < 0 || math.IsNaN(maxTurn) {
		maxTurn = 0
	}
	prevDir := heading
	if _, ok := prevDir.Normalize(); !ok {
		prevDir = UnitX
	}
	prevAngle := prevDir.Angle()

	for i := 1; i < len(positions); i++ {
		lead := positions[i-1]

		raw := lead.Sub(positions[i])
		var angle float64
		if dir, ok := raw.Normalize(); ok {
			angle = dir.Angle()
		} else {
			// 零长度或 NaN：沿用前一段方向
			angle = prevAngle
		}

		if i >= 2 {
			diff := WrapAngle(angle - prevAngle)
			if math.Abs(diff) > maxTurn {
				angle = prevAngle + math.Copysign(maxTurn, diff)
			}
		}

		dir := FromAngle(angle)
		if dir.IsNaN() {
			dir = UnitX
			angle = 0
		}

		r := 0.0
		if i < len(radii) {
			r = float64(radii[i])
		}
		next := lead.Sub(dir.Scale(r))
		if !next.IsFinite() {
			next = lead
		}
		positions[i] = next
		prevAngle = angle
	}
}
