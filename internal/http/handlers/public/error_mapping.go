package public

import (
	"errors"

	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var tenantRegisterErrorRules = []mappedHandlerError{
	{target: service.ErrUserNotFound, code: response.CodeUnauthorized, msg: "user not found"},
	{target: service.ErrCountryInvalid, code: response.CodeBadRequest, msg: "country invalid"},
	{target: service.ErrProcessorUnavailable, code: response.CodeUpstream, msg: "payment processor unavailable"},
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrAmountInvalid, code: response.CodeBadRequest, msg: "payment amount invalid"},
	{target: service.ErrTenantNotFound, code: response.CodeNotFound, msg: "tenant account not found"},
	{target: service.ErrTenantForbidden, code: response.CodeForbidden, msg: "tenant account not owned by caller"},
	{target: service.ErrTenantDisabled, code: response.CodeBadRequest, msg: "tenant account disabled"},
	{target: service.ErrProcessorUnavailable, code: response.CodeUpstream, msg: "payment processor unavailable"},
}

var paymentCaptureErrorRules = []mappedHandlerError{
	{target: service.ErrSaleNotFound, code: response.CodeNotFound, msg: "commission sale not found"},
	{target: service.ErrProcessorUnavailable, code: response.CodeUpstream, msg: "payment processor unavailable"},
}

func respondTenantRegisterError(c *gin.Context, err error) {
	respondWithMappedError(c, err, tenantRegisterErrorRules, response.CodeInternal, "tenant register failed")
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "payment create failed")
}

func respondPaymentCaptureError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCaptureErrorRules, response.CodeInternal, "payment capture failed")
}
