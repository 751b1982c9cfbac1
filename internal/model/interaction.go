package model

import (
	"database/sql/driver"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// MaxGenreAffinity 单个类型的权重上限
	MaxGenreAffinity = 100.0
	// AffinityBudget 所有类型权重之和的上限，超出时等比缩放
	AffinityBudget = 200.0
)

// Action 用户互动类型
type Action string

const (
	ActionView     Action = "view"
	ActionLike     Action = "like"
	ActionComplete Action = "complete"
	ActionShare    Action = "share"
)

// actionWeights 各互动对类型偏好的基础加分
var actionWeights = map[Action]float64{
	ActionView:     1,
	ActionLike:     3,
	ActionComplete: 5,
	ActionShare:    4,
}

// Weight 返回互动的基础权重，未知类型返回 false
func (a Action) Weight() (float64, bool) {
	w, ok := actionWeights[a]
	return w, ok
}

// Affinity 类型偏好: map[genre]weight，存为 jsonb
type Affinity map[string]float64

// NormalizeGenre 类型名统一小写去空白
func NormalizeGenre(genre string) string {
	return strings.ToLower(strings.TrimSpace(genre))
}

// Get 读取类型权重，缺失为 0
func (a Affinity) Get(genre string) float64 {
	if a == nil {
		return 0
	}
	return a[NormalizeGenre(genre)]
}

// Total 所有类型权重之和
func (a Affinity) Total() float64 {
	var sum float64
	for _, w := range a {
		sum += w
	}
	return sum
}

// Clone 深拷贝
func (a Affinity) Clone() Affinity {
	out := make(Affinity, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Apply 在副本上累加某类型权重：单类型封顶 100，总和超过 200 时整体等比缩放
func (a Affinity) Apply(genre string, added float64) Affinity {
	out := a.Clone()
	g := NormalizeGenre(genre)
	if g == "" {
		return out
	}
	out[g] = math.Max(0, math.Min(out[g]+added, MaxGenreAffinity))

	if total := out.Total(); total > AffinityBudget {
		factor := AffinityBudget / total
		for k := range out {
			out[k] *= factor
		}
	}
	return out
}

// TopGenres 按权重降序取前 n 个类型，权重相同时按名称排序
func (a Affinity) TopGenres(n int) []string {
	genres := make([]string, 0, len(a))
	for g, w := range a {
		if w > 0 {
			genres = append(genres, g)
		}
	}
	sort.Slice(genres, func(i, j int) bool {
		wi, wj := a[genres[i]], a[genres[j]]
		if wi != wj {
			return wi > wj
		}
		return genres[i] < genres[j]
	})
	if n >= 0 && len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

func (a Affinity) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ParseAffinity 解析持久化的偏好，无法解析时返回空偏好
func ParseAffinity(raw []byte) Affinity {
	parsed := Affinity{}
	if len(raw) == 0 {
		return parsed
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed == nil {
		return Affinity{}
	}
	for g, w := range parsed {
		if g != NormalizeGenre(g) || w < 0 {
			delete(parsed, g)
			if ng := NormalizeGenre(g); ng != "" && w > 0 {
				parsed[ng] += w
			}
		}
	}
	return parsed
}

func (a *Affinity) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*a = ParseAffinity(v)
	case string:
		*a = ParseAffinity([]byte(v))
	default:
		*a = Affinity{}
	}
	return nil
}
