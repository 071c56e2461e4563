package vec

import "math"

// Vec2f 世界坐标（单位：格），float32 与线路格式一致
type Vec2f struct {
	X float32
	Y float32
}

// Vec2i 整数二维向量（方向、格子偏移）
type Vec2i struct {
	X int32
	Y int32
}

func (v Vec2f) Add(o Vec2f) Vec2f { return Vec2f{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2f) Sub(o Vec2f) Vec2f { return Vec2f{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale 乘以标量；显式转换阻止编译器把乘法与后续加法融合为 FMA
func (v Vec2f) Scale(s float32) Vec2f {
	return Vec2f{X: float32(v.X * s), Y: float32(v.Y * s)}
}

func (v Vec2f) LengthSquared() float32 {
	return float32(v.X*v.X) + float32(v.Y*v.Y)
}

func (v Vec2f) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// Normalized 返回单位向量，零向量原样返回
func (v Vec2f) Normalized() Vec2f {
	l := v.Length()
	if l > 0 {
		return Vec2f{X: v.X / l, Y: v.Y / l}
	}
	return v
}

func (v Vec2f) DistanceSquared(o Vec2f) float32 { return v.Sub(o).LengthSquared() }
func (v Vec2f) Distance(o Vec2f) float32 { return v.Sub(o).Length() }

// Lerp 线性插值，t ∈ [0,1]
func (v Vec2f) Lerp(target Vec2f, t float32) Vec2f {
	return v.Add(target.Sub(v).Scale(t))
}

func (v Vec2f) IsZero() bool { return v.X == 0 && v.Y == 0 }

func (v Vec2i) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Float 转为浮点向量
func (v Vec2i) Float() Vec2f { return Vec2f{X: float32(v.X), Y: float32(v.Y)} }
