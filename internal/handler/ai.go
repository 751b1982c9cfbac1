package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/service"
	"github.com/user/curtas/internal/utils"
)

// generationParams GET 走 query，POST 走 JSON/表单
type generationParams struct {
	Prompt      string   `form:"prompt" json:"prompt"`
	Model       string   `form:"model" json:"model"`
	Streaming   bool     `form:"streaming" json:"streaming"`
	Temperature *float64 `form:"temperature" json:"temperature" binding:"omitempty,gte=0,lte=1"`
	MaxTokens   *int     `form:"max_tokens" json:"max_tokens" binding:"omitempty,gte=1,lte=4096"`
	ImageURL    string   `form:"imageUrl" json:"imageUrl"`
	ImageBase64 string   `form:"imageBase64" json:"imageBase64"`

	// DeviceID 匿名用户的额度归属
	DeviceID          string `form:"deviceId" json:"deviceId"`
	DocumentCharCount int    `form:"documentCharCount" json:"documentCharCount" binding:"omitempty,gte=0"`
}

func (h *Handler) creditOwner(c *gin.Context, p generationParams) service.CreditOwner {
	return service.ResolveCreditOwner(middleware.GetUserID(c), p.DeviceID, utils.HashIP(c.ClientIP()))
}

// ListModels GET /api/ai/models
func (h *Handler) ListModels(c *gin.Context) {
	utils.Success(c, service.ListModels())
}

// GenerateText GET|POST /api/ai/generate-text
func (h *Handler) GenerateText(c *gin.Context) {
	var p generationParams
	if err := c.ShouldBind(&p); err != nil {
		utils.BadRequest(c, utils.ValidationMessage(err))
		return
	}
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Prompt == "" {
		utils.BadRequest(c, "O prompt é obrigatório e deve ser uma string não-vazia")
		return
	}

	h.generate(c, p.Streaming, h.creditOwner(c, p), model.GenerationCost(false, p.DocumentCharCount), service.GenerationRequest{
		Model:       service.ResolveModel(p.Model),
		Prompt:      p.Prompt,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
}

// AnalyzeImage GET|POST /api/ai/analyze-image
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var p generationParams
	if err := c.ShouldBind(&p); err != nil {
		utils.BadRequest(c, utils.ValidationMessage(err))
		return
	}

	image, err := service.NormalizeImageSource(p.ImageURL, p.ImageBase64)
	if err != nil {
		utils.BadRequest(c, "É necessário fornecer imageUrl válida ou imageBase64 válido")
		return
	}

	prompt := strings.TrimSpace(p.Prompt)
	if prompt == "" {
		prompt = "Descreva esta imagem em detalhes."
	}

	h.generate(c, p.Streaming, h.creditOwner(c, p), model.GenerationCost(true, 0), service.GenerationRequest{
		Model:       service.ResolveModel(p.Model),
		Prompt:      prompt,
		ImageURL:    image,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
}

// generate 先扣额度再调用上游；上游没有产出任何内容就失败时退回
func (h *Handler) generate(c *gin.Context, streaming bool, owner service.CreditOwner, cost int, req service.GenerationRequest) {
	if !h.chargeCredits(c, owner, cost) {
		return
	}
	refund := func() { h.Credits.Refund(context.WithoutCancel(c.Request.Context()), owner, cost) }

	if !streaming {
		text, err := h.Provider.Generate(c.Request.Context(), req)
		if err != nil {
			refund()
			h.providerError(c, err)
			return
		}
		utils.Success(c, gin.H{"text": text, "model": req.Model})
		return
	}
	h.stream(c, req, refund)
}

// chargeCredits 额度不足返回 402，附带余额和重置时间
func (h *Handler) chargeCredits(c *gin.Context, owner service.CreditOwner, cost int) bool {
	acc, err := h.Credits.Charge(c.Request.Context(), owner, cost)
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, utils.Response{
			Code:    http.StatusPaymentRequired,
			Message: "Créditos insuficientes. Seus créditos serão renovados em breve.",
			Data: gin.H{
				"available": acc.Available,
				"cost":      cost,
				"resetsAt":  acc.ResetsAt(),
			},
			Success: false,
		})
		return false
	case err != nil:
		logging.With("credits").Error().Err(err).Str("owner_kind", string(owner.Kind)).Msg("扣除额度失败")
		utils.ServiceUnavailable(c, "Não foi possível verificar seus créditos")
		return false
	}
	c.Header("X-Credits-Remaining", strconv.Itoa(acc.Available))
	return true
}

// stream 建立 SSE 连接并登记到注册表，直到完成、出错或被中断
func (h *Handler) stream(c *gin.Context, req service.GenerationRequest, refund func()) {
	log := logging.With("generation")
	id := uuid.NewString()
	userID := middleware.GetUserID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	body, err := h.Provider.StartGeneration(ctx, req)
	if err != nil {
		refund()
		h.providerError(c, err)
		return
	}
	defer body.Close()

	sink := newSSEWriter(c)
	defer sink.Close()

	h.Connections.Register(id, userID, body, cancel, sink)
	outcome := service.OutcomeFinished
	defer func() { h.Connections.Finish(id, outcome) }()

	if err := sink.Send(model.ConnectedEvent(id)); err != nil {
		return
	}

	err = h.Relay.Relay(ctx, body, func(text string) error {
		return sink.Send(model.TextEvent(text))
	})

	switch {
	case ctx.Err() != nil:
		// Stop 时终止事件由注册表写出，客户端断开则无需再写
		log.Debug().Str("connection_id", id).Msg("生成已中断")
	case err != nil:
		log.Warn().Err(err).Str("connection_id", id).Str("model", req.Model).Msg("生成流出错")
		outcome = service.OutcomeFailed
		_ = sink.Send(model.ErrorEvent(streamErrorMessage(err)))
	default:
		_ = sink.Send(model.DoneEvent())
	}
}

func streamErrorMessage(err error) string {
	var upstream *service.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return "Erro ao processar a resposta do modelo"
}

// providerError 上游状态码透传，熔断打开时返回 503
func (h *Handler) providerError(c *gin.Context, err error) {
	var status *service.ProviderStatusError
	var upstream *service.UpstreamError
	switch {
	case errors.Is(err, service.ErrProviderUnavailable):
		utils.ServiceUnavailable(c, "")
	case errors.As(err, &status):
		utils.Error(c, status.StatusCode, status.Message)
	case errors.As(err, &upstream):
		utils.Error(c, http.StatusBadGateway, upstream.Message)
	case errors.Is(err, service.ErrEmptyCompletion):
		utils.Error(c, http.StatusBadGateway, "O modelo não retornou conteúdo")
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		utils.InternalServerError(c, "Erro interno ao gerar texto")
	}
}

// StopGeneration GET /api/ai/stop-generation?connectionId=
func (h *Handler) StopGeneration(c *gin.Context) {
	id := strings.TrimSpace(c.Query("connectionId"))
	if id == "" {
		utils.BadRequest(c, "ID da conexão é obrigatório")
		return
	}
	if !h.Connections.Stop(id) {
		utils.NotFound(c, "Conexão não encontrada ou já finalizada")
		return
	}
	utils.SuccessWithMessage(c, "Geração interrompida com sucesso", nil)
}

// ListConnections GET /api/ai/connections
func (h *Handler) ListConnections(c *gin.Context) {
	utils.Success(c, gin.H{"connections": h.Connections.ListConnections(middleware.GetUserID(c))})
}

// CreditsBalance GET /api/ai/credits?deviceId=
func (h *Handler) CreditsBalance(c *gin.Context) {
	owner := service.ResolveCreditOwner(middleware.GetUserID(c), c.Query("deviceId"), utils.HashIP(c.ClientIP()))
	acc, err := h.Credits.Balance(c.Request.Context(), owner)
	if err != nil {
		logging.With("credits").Error().Err(err).Msg("查询额度失败")
		utils.InternalServerError(c, "Erro ao buscar créditos")
		return
	}
	utils.Success(c, gin.H{
		"available":  acc.Available,
		"dailyLimit": acc.DailyLimit,
		"resetsAt":   acc.ResetsAt(),
		"costs": gin.H{
			"text":                   model.CreditsPerTextRequest,
			"image":                  model.CreditsPerImageRequest,
			"documentCharsPerCredit": model.DocumentCharsPerCredit,
		},
	})
}
