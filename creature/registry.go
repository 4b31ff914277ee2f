package creature

import (
	"sort"
	"sync"
)

// Snapshot 供渲染层读取的只读副本
type Snapshot struct {
	ID        int
	Type      Type
	Positions []Vec2
	Radii     []int
	Parts     []BodyPart
	Local     bool
}

// Registry 所有已知生物（本地 + 远端），按玩家 ID 索引。
// 读写均在锁内完成，外部只能拿到副本。
type Registry struct {
	mu        sync.RWMutex
	creatures map[int]*Creature
	localID   int
	hasLocal  bool

	// 只收到位置、尚未收到种类声明的条目；种类按节段数推断
	inferred map[int]bool
}

func NewRegistry() *Registry {
	return &Registry{creatures: make(map[int]*Creature), inferred: make(map[int]bool)}
}

// SetLocal 创建（或替换）本地玩家的生物
func (r *Registry) SetLocal(id int, t Type, start Vec2) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasLocal && r.localID != id {
		delete(r.creatures, r.localID)
	}
	r.localID = id
	r.hasLocal = true
	delete(r.inferred, id)
	r.creatures[id] = New(t, start)
}

// LocalID 本地玩家 ID；尚未分配时 ok 为 false
func (r *Registry) LocalID() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.localID, r.hasLocal
}

// IsLocal 判断 ID 是否为本地玩家
func (r *Registry) IsLocal(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasLocal && r.localID == id
}

// StepLocal 以求解器推进本地生物，返回推进后的位置副本
func (r *Registry) StepLocal(target Vec2, dt float64) ([]Vec2, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasLocal {
		return nil, false
	}
	c, ok := r.creatures[r.localID]
	if !ok {
		return nil, false
	}
	c.Update(target, dt)
	return c.Positions(), true
}

// ApplyPositions 写入远端生物位置。未知 ID 在首个位置处创建，种类在收到
// PlayerCreature 之前按上报的节段数推断（无法推断时用默认种类）。
// 返回 true 表示新建了条目。
func (r *Registry) ApplyPositions(id int, ps []Vec2) bool {
	if len(ps) == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creatures[id]
	if !ok || r.inferred[id] {
		t, _ := TypeForSegments(len(ps))
		if !ok || c.Type() != t {
			c = New(t, ps[0])
			r.creatures[id] = c
		}
		r.inferred[id] = true
	}
	c.SetPositions(ps)
	return !ok
}

// ApplyType 设置生物种类；种类变化时在原头部位置重建，未知 ID 在 start 处新建。
// 返回 true 表示条目被新建或替换。
func (r *Registry) ApplyType(id int, t Type, start Vec2) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inferred, id)
	if c, ok := r.creatures[id]; ok {
		if c.Type() == t {
			return false
		}
		r.creatures[id] = New(t, c.Head())
		return true
	}
	r.creatures[id] = New(t, start)
	return true
}

// Remove 删除条目
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creatures[id]; !ok {
		return false
	}
	delete(r.creatures, id)
	delete(r.inferred, id)
	if r.hasLocal && r.localID == id {
		r.hasLocal = false
	}
	return true
}

// Get 单个条目的快照
func (r *Registry) Get(id int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creatures[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshotLocked(id, c), true
}

// Snapshot 所有条目的快照，按 ID 升序
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.creatures))
	for id, c := range r.creatures {
		out = append(out, r.snapshotLocked(id, c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 条目数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.creatures)
}

func (r *Registry) snapshotLocked(id int, c *Creature) Snapshot {
	return Snapshot{
		ID:        id,
		Type:      c.Type(),
		Positions: c.Positions(),
		Radii:     c.Radii(),
		Parts:     c.Parts(),
		Local:     r.hasLocal && r.localID == id,
	}
}
