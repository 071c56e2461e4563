package protocol

import (
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"

	"gridsync/grid"
	"gridsync/vec"
)

var (
	// ErrTruncated 负载长度不足（截断或畸形）
	ErrTruncated = eris.New("unexpected end of data")
	// ErrVarintOverflow 变长整数超过 64 位
	ErrVarintOverflow = eris.New("varint too large")
	// ErrMessageTooLarge 负载超过头部长度字段可表达的范围
	ErrMessageTooLarge = eris.New("message too large")
	// ErrUnknownMessage 未知消息类型
	ErrUnknownMessage = eris.New("unknown message type")
)

// Writer 大端二进制写入器
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *Writer) I8(v int8) { w.U8(uint8(v)) }
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

func (w *Writer) Varint(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

// Str 变长长度前缀 + 字节
func (w *Writer) Str(s string) {
	w.Varint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) Bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Vec2f(v vec.Vec2f) {
	w.F32(v.X)
	w.F32(v.Y)
}

func (w *Writer) Vec2i(v vec.Vec2i) {
	w.I32(v.X)
	w.I32(v.Y)
}

func (w *Writer) TilePos(p grid.TilePos) {
	w.I32(p.X)
	w.I32(p.Y)
}

// Data 已写入的字节
func (w *Writer) Data() []byte { return w.buf }
func (w *Writer) Len() int { return len(w.buf) }

// Reader 大端二进制读取器。首次越界后记录错误，之后的读取都返回零值，
// 解码函数读完再统一检查 Err。
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.err = eris.Wrapf(ErrTruncated, "need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos)
		return false
	}
	return true
}

func (r *Reader) U8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *Reader) U16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) U32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) U64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *Reader) I8() int8 { return int8(r.U8()) }
func (r *Reader) I32() int32 { return int32(r.U32()) }
func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }
func (r *Reader) Bool() bool { return r.U8() != 0 }

func (r *Reader) Varint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	switch {
	case n == 0:
		r.err = eris.Wrapf(ErrTruncated, "varint at offset %d", r.pos)
		return 0
	case n < 0:
		r.err = eris.Wrapf(ErrVarintOverflow, "varint at offset %d", r.pos)
		return 0
	}
	r.pos += n
	return v
}

func (r *Reader) Str() string {
	n := r.Varint()
	if n > uint64(len(r.data)) || !r.need(int(n)) {
		if r.err == nil {
			r.err = eris.Wrapf(ErrTruncated, "string of %d bytes", n)
		}
		return ""
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}

// Bytes 读取 n 个字节（返回副本）
func (r *Reader) Bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out
}

func (r *Reader) Vec2f() vec.Vec2f {
	x := r.F32()
	y := r.F32()
	return vec.Vec2f{X: x, Y: y}
}

func (r *Reader) Vec2i() vec.Vec2i {
	x := r.I32()
	y := r.I32()
	return vec.Vec2i{X: x, Y: y}
}

func (r *Reader) TilePos() grid.TilePos {
	x := r.I32()
	y := r.I32()
	return grid.TilePos{X: x, Y: y}
}

func (r *Reader) Remaining() int { return len(r.data) - r.pos }
func (r *Reader) Err() error { return r.err }
