package server

import (
	"context"
	"time"

	"gridsync/game"
)

const tickSeconds = 1.0 / game.TickRate

// frameInterval 帧节拍；每帧处理网络后按累积时间推进若干固定 Tick
var frameInterval = time.Second / game.TickRate

// Frame 推进一帧：wall 为距上一帧的墙钟秒数，超过上限时截断，避免卡顿后的死亡螺旋
func (r *Room) Frame(wall float64) int {
	if wall > game.MaxFrameDelta {
		wall = game.MaxFrameDelta
	}
	if wall < 0 {
		wall = 0
	}
	r.ProcessNetwork()
	r.accumulator += wall
	steps := 0
	for r.accumulator >= tickSeconds {
		r.Step()
		r.accumulator -= tickSeconds
		steps++
	}
	return steps
}

// Run 启动房间的 Tick 循环（单协程推进世界），ctx 取消后关闭所有连接
func (r *Room) Run(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	r.lastFrame = time.Now()
	r.log.Infof("room started: %dx%d map, %d Hz", r.tiles.Width(), r.tiles.Height(), game.TickRate)
	for {
		select {
		case <-ctx.Done():
			r.Close()
			r.log.Info("room stopped")
			return
		case now := <-ticker.C:
			// 核心循环：处理输入 → 更新世界 → 广播结果
			r.Frame(now.Sub(r.lastFrame).Seconds())
			r.lastFrame = now
		}
	}
}
