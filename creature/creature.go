package creature

// Creature 单个生物：节段数量与半径在构造时固定，之后只改变位置
type Creature struct {
	kind      Type
	profile   Profile
	radii     []int
	positions []Vec2
	heading   Vec2
}

// BodyPart 渲染用分组视图（Head / Body / Tail）
type BodyPart struct {
	Name      string
	Positions []Vec2
	Radii     []int
}

// New 在 start 处构造生物，身体沿 -Y 方向依次排开
func New(t Type, start Vec2) *Creature {
	p := ProfileOf(t)
	radii := p.Radii()
	positions := make([]Vec2, len(radii))
	for i := range positions {
		positions[i] = Vec2{X: start.X, Y: start.Y - float64(i)*p.Spacing}
	}
	return &Creature{
		kind:      p.Type,
		profile:   p,
		radii:     radii,
		positions: positions,
		heading:   Vec2{Y: 1},
	}
}

func (c *Creature) Type() Type { return c.kind }

func (c *Creature) Speed() float64 { return c.profile.Speed }

func (c *Creature) MaxTurn() float64 { return c.profile.MaxTurn }

func (c *Creature) Len() int { return len(c.positions) }

// Head 头部位置
func (c *Creature) Head() Vec2 { return c.positions[0] }

// Heading 当前头部朝向
func (c *Creature) Heading() Vec2 { return c.heading }

// Positions 返回位置副本
func (c *Creature) Positions() []Vec2 {
	out := make([]Vec2, len(c.positions))
	copy(out, c.positions)
	return out
}

// Radii 返回半径副本
func (c *Creature) Radii() []int {
	out := make([]int, len(c.radii))
	copy(out, c.radii)
	return out
}

// Update 本地生物每帧推进一次
func (c *Creature) Update(target Vec2, dt float64) {
	ch := Chain{
		Positions: c.positions,
		Radii:     c.radii,
		MaxTurn:   c.profile.MaxTurn,
		Speed:     c.profile.Speed,
		Heading:   c.heading,
	}
	Step(&ch, target, dt)
	c.heading = ch.Heading
}

// SetPositions 用远端上报的位置覆盖；多余的忽略，非有限值的坐标被跳过。
// 上报不足时，其余节段从最后一个上报节段起重新跟随，保持与身体相连。
func (c *Creature) SetPositions(ps []Vec2) {
	k := len(ps)
	if k > len(c.positions) {
		k = len(c.positions)
	}
	for i := 0; i < k; i++ {
		if ps[i].IsFinite() {
			c.positions[i] = ps[i]
		}
	}
	if len(c.positions) > 1 {
		if h, ok := c.positions[0].Sub(c.positions[1]).Normalize(); ok {
			c.heading = h
		}
	}
	if k == 0 || k == len(c.positions) {
		return
	}
	lead := c.heading
	if k >= 2 {
		if d, ok := c.positions[k-2].Sub(c.positions[k-1]).Normalize(); ok {
			lead = d
		}
	}
	Solve(c.positions[k-1:], c.radii[k-1:], c.profile.MaxTurn, lead)
}

// Parts 按 Profile 的分组切分出渲染视图
func (c *Creature) Parts() []BodyPart {
	parts := make([]BodyPart, 0, len(c.profile.Parts))
	idx := 0
	for _, part := range c.profile.Parts {
		n := len(part.Radii)
		parts = append(parts, BodyPart{
			Name:      part.Name,
			Positions: append([]Vec2(nil), c.positions[idx:idx+n]...),
			Radii:     append([]int(nil), part.Radii...),
		})
		idx += n
	}
	return parts
}
