package ecs

const invalidDense = ^uint32(0)

type entry[T any] struct {
	owner Entity
	value T
}

// Pool 单一组件类型的稀疏集：sparse 以实体下标索引 dense，dense 紧凑存放。
// 每个条目记录写入时的句柄，下标被复用后旧组件对新实体不可见。
type Pool[T any] struct {
	world  *World
	sparse []uint32
	dense  []entry[T]
}

// NewPool 为类型 T 注册组件池（启动时显式调用，每种组件一个）
func NewPool[T any](w *World) *Pool[T] {
	return &Pool[T]{world: w}
}

func (p *Pool[T]) slot(e Entity) (uint32, bool) {
	if int(e.Index) >= len(p.sparse) {
		return invalidDense, false
	}
	d := p.sparse[e.Index]
	if d == invalidDense {
		return invalidDense, false
	}
	return d, true
}

// Get 返回组件指针；实体失效或无该组件返回 nil
func (p *Pool[T]) Get(e Entity) *T {
	if !p.world.IsAlive(e) {
		return nil
	}
	d, ok := p.slot(e)
	if !ok || p.dense[d].owner != e {
		return nil
	}
	return &p.dense[d].value
}

// Has 实体存活且持有该组件
func (p *Pool[T]) Has(e Entity) bool { return p.Get(e) != nil }

// Set 添加或替换组件，返回池内指针（下一次 Set/Remove 之前有效）
func (p *Pool[T]) Set(e Entity, v T) *T {
	if !p.world.IsAlive(e) {
		return nil
	}
	if d, ok := p.slot(e); ok {
		// 同一下标的旧条目（可能属于已销毁的前任）直接覆盖
		p.dense[d] = entry[T]{owner: e, value: v}
		return &p.dense[d].value
	}
	for int(e.Index) >= len(p.sparse) {
		p.sparse = append(p.sparse, invalidDense)
	}
	p.sparse[e.Index] = uint32(len(p.dense))
	p.dense = append(p.dense, entry[T]{owner: e, value: v})
	return &p.dense[len(p.dense)-1].value
}

// Remove 与末尾元素交换后弹出，O(1)
func (p *Pool[T]) Remove(e Entity) {
	d, ok := p.slot(e)
	if !ok || p.dense[d].owner != e {
		return
	}
	last := uint32(len(p.dense) - 1)
	if d != last {
		p.dense[d] = p.dense[last]
		p.sparse[p.dense[d].owner.Index] = d
	}
	var zero entry[T]
	p.dense[last] = zero
	p.dense = p.dense[:last]
	p.sparse[e.Index] = invalidDense
}

// Len dense 条目数（含尚未被覆盖的孤儿条目）
func (p *Pool[T]) Len() int { return len(p.dense) }

// Clear 清空池
func (p *Pool[T]) Clear() {
	p.sparse = p.sparse[:0]
	p.dense = p.dense[:0]
}

// Each 遍历池中所有存活实体。回调可以删除当前实体的组件：
// 末尾条目被换入当前槽位时原地再访问一次
func (p *Pool[T]) Each(fn func(e Entity, v *T)) {
	for i := 0; i < len(p.dense); {
		owner := p.dense[i].owner
		if p.world.IsAlive(owner) {
			fn(owner, &p.dense[i].value)
		}
		if i < len(p.dense) && p.dense[i].owner != owner {
			continue
		}
		i++
	}
}

// Each2 以 a 池驱动遍历，仅当实体同时持有 b 组件时回调
func Each2[A, B any](a *Pool[A], b *Pool[B], fn func(e Entity, av *A, bv *B)) {
	a.Each(func(e Entity, av *A) {
		if bv := b.Get(e); bv != nil {
			fn(e, av, bv)
		}
	})
}
