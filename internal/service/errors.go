package service

import "errors"

// 服务层业务错误
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCountryInvalid       = errors.New("country invalid")
	ErrTenantExists         = errors.New("tenant account already exists")
	ErrTenantNotFound       = errors.New("tenant account not found")
	ErrTenantForbidden      = errors.New("tenant account not owned by caller")
	ErrTenantDisabled       = errors.New("tenant account disabled")
	ErrTenantNotVirtual     = errors.New("tenant account is not virtual")
	ErrTenantVirtual        = errors.New("tenant account is virtual")
	ErrTenantStatusInvalid  = errors.New("tenant status invalid")
	ErrRateInvalid          = errors.New("commission rate invalid")
	ErrAmountInvalid        = errors.New("payment amount invalid")
	ErrSaleNotFound         = errors.New("commission sale not found")
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
)
