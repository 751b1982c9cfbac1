package service

import (
	"sort"
	"strings"
)

// 可用模型 ID
const (
	ModelGPT4oMini         = "openai/gpt-4o-mini"
	ModelGPTOSS20B         = "openai/gpt-oss-20b"
	ModelGemma3_4B         = "google/gemma-3-4b-it"
	ModelGemma3_12B        = "google/gemma-3-12b-it"
	ModelGemma3_27B        = "google/gemma-3-27b-it"
	ModelClaude3Opus       = "anthropic/claude-3-opus:beta"
	ModelClaude3Sonnet     = "anthropic/claude-3-sonnet"
	ModelClaude3Haiku      = "anthropic/claude-3-haiku"
	ModelMistralSmall3_1   = "mistralai/mistral-small-3.1-24b-instruct"
	DefaultGenerationModel = ModelGPTOSS20B
)

// ModelInfo 模型说明
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelAlias 别名说明
type ModelAlias struct {
	Alias       string `json:"alias"`
	ModelID     string `json:"model_id"`
	Description string `json:"description"`
}

// ModelCatalog 按系列分组的模型列表
type ModelCatalog struct {
	OpenAI  []ModelInfo  `json:"openai"`
	Gemma   []ModelInfo  `json:"gemma"`
	Claude  []ModelInfo  `json:"claude"`
	Mistral []ModelInfo  `json:"mistral"`
	Aliases []ModelAlias `json:"aliases"`
}

var modelCatalog = ModelCatalog{
	OpenAI: []ModelInfo{
		{ID: ModelGPT4oMini, Name: "GPT-4o mini", Description: "Melhor qualidade de resposta"},
		{ID: ModelGPTOSS20B, Name: "GPT-OSS 20B", Description: "Modelo padrão, boa qualidade"},
	},
	Gemma: []ModelInfo{
		{ID: ModelGemma3_4B, Name: "Gemma 3 4B IT", Description: "Modelo menor e mais rápido da série Gemma 3"},
		{ID: ModelGemma3_12B, Name: "Gemma 3 12B IT", Description: "Modelo equilibrado entre velocidade e capacidade"},
		{ID: ModelGemma3_27B, Name: "Gemma 3 27B IT", Description: "Modelo mais avançado da série Gemma 3"},
	},
	Claude: []ModelInfo{
		{ID: ModelClaude3Haiku, Name: "Claude 3 Haiku", Description: "Modelo mais rápido da série Claude 3"},
		{ID: ModelClaude3Sonnet, Name: "Claude 3 Sonnet", Description: "Modelo equilibrado entre velocidade e capacidade"},
		{ID: ModelClaude3Opus, Name: "Claude 3 Opus", Description: "Modelo mais avançado da série Claude 3"},
	},
	Mistral: []ModelInfo{
		{ID: ModelMistralSmall3_1, Name: "Mistral Small 3.1 24B", Description: "Mistral Small 3.1 com 24 bilhões de parâmetros"},
	},
}

// modelAliases 用途别名和画质别名
var modelAliases = map[string]string{
	"chat":        ModelGPTOSS20B,
	"file":        ModelGemma3_12B,
	"summary_en":  ModelGemma3_12B,
	"code":        ModelMistralSmall3_1,
	"otimo":       ModelGPT4oMini,
	"bom":         ModelGPTOSS20B,
	"equilibrado": ModelGemma3_27B,
	"baixo":       ModelGemma3_12B,
}

var knownModels = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, group := range [][]ModelInfo{modelCatalog.OpenAI, modelCatalog.Gemma, modelCatalog.Claude, modelCatalog.Mistral} {
		for _, info := range group {
			m[info.ID] = struct{}{}
		}
	}
	return m
}()

// ResolveModel 把别名或模型 ID 解析为可用的模型 ID，无法识别时返回默认模型
func ResolveModel(requested string) string {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name == "" {
		return DefaultGenerationModel
	}
	if id, ok := modelAliases[name]; ok {
		return id
	}
	if _, ok := knownModels[name]; ok {
		return name
	}
	if strings.Contains(name, "resumo") && strings.Contains(name, "english") {
		return modelAliases["summary_en"]
	}
	return DefaultGenerationModel
}

// IsKnownModel 是否在模型列表中
func IsKnownModel(id string) bool {
	_, ok := knownModels[id]
	return ok
}

// ListModels 返回模型列表，别名按名称排序
func ListModels() ModelCatalog {
	out := modelCatalog
	out.Aliases = make([]ModelAlias, 0, len(modelAliases))
	for alias, id := range modelAliases {
		out.Aliases = append(out.Aliases, ModelAlias{Alias: alias, ModelID: id, Description: "Alias para " + id})
	}
	sort.Slice(out.Aliases, func(i, j int) bool { return out.Aliases[i].Alias < out.Aliases[j].Alias })
	return out
}
