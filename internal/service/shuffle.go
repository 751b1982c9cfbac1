package service

import (
	"math/rand/v2"
	"sync"
	"time"
)

// maxShuffleDistance 单个元素最多被挪动的位置数
const maxShuffleDistance = 2

// RandSource 可注入的随机源，测试时用固定种子
type RandSource interface {
	IntN(n int) int
}

// lockedRand 让 *rand.Rand 可以被多个请求并发使用
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRandSource 固定种子的并发安全随机源
func NewRandSource(seed uint64) RandSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func newTimeSeededRand() RandSource {
	return NewRandSource(uint64(time.Now().UnixNano()))
}

// LocalShuffle 对前 n 个元素做局部打散：从后往前，每个位置与其前面至多 2 位的元素交换，
// 已经被换过的元素不再参与交换，因此任何元素的位移不超过 2
func LocalShuffle[T any](items []T, n int, rng RandSource) {
	if n > len(items) {
		n = len(items)
	}
	if n < 2 || rng == nil {
		return
	}

	moved := make([]bool, n)
	for i := n - 1; i > 0; i-- {
		if moved[i] {
			continue
		}
		window := min(maxShuffleDistance, i)
		j := i - rng.IntN(window+1)
		if j == i || moved[j] {
			continue
		}
		items[i], items[j] = items[j], items[i]
		moved[i], moved[j] = true, true
	}
}
