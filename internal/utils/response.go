package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// HashIP 对 IP 地址进行哈希处理（限流 key，不落明文）
func HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}

// Response 统一API响应结构
type Response struct {
	Code    int         `json:"code"`    // 状态码
	Message string      `json:"message"` // 消息
	Data    interface{} `json:"data"`    // 数据
	Success bool        `json:"success"` // 是否成功
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Success: true,
	})
}

// SuccessWithMessage 返回成功响应并自定义消息
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
		Success: true,
	})
}

// Error 返回错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Success: false,
	})
}

// AbortWithError 返回错误响应并中止后续 handler
func AbortWithError(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}

// BadRequest 返回400错误
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Parâmetros inválidos"
	}
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 返回401错误
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Não autenticado"
	}
	Error(c, http.StatusUnauthorized, message)
}

// PaymentRequired 返回402错误，额度不足
func PaymentRequired(c *gin.Context, message string) {
	if message == "" {
		message = "Créditos insuficientes"
	}
	Error(c, http.StatusPaymentRequired, message)
}

// Forbidden 返回403错误
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Acesso negado"
	}
	Error(c, http.StatusForbidden, message)
}

// NotFound 返回404错误
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Recurso não encontrado"
	}
	Error(c, http.StatusNotFound, message)
}

// TooManyRequests 返回429错误
func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "Muitas requisições, tente novamente em instantes"
	}
	Error(c, http.StatusTooManyRequests, message)
}

// InternalServerError 返回500错误
func InternalServerError(c *gin.Context, message string) {
	if message == "" {
		message = "Erro interno do servidor"
	}
	Error(c, http.StatusInternalServerError, message)
}

// ServiceUnavailable 返回503错误
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Serviço temporariamente indisponível"
	}
	Error(c, http.StatusServiceUnavailable, message)
}

// ValidationError 参数校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationMessage 把 binding 错误转成面向用户的文案
func ValidationMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Parâmetros inválidos"
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("%s é obrigatório", field))
		case "gte", "min":
			msgs = append(msgs, fmt.Sprintf("%s deve ser no mínimo %s", field, fe.Param()))
		case "lte", "max":
			msgs = append(msgs, fmt.Sprintf("%s deve ser no máximo %s", field, fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s deve ser uma URL válida", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s deve ser um de: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s inválido", field))
		}
	}
	return strings.Join(msgs, "; ")
}
