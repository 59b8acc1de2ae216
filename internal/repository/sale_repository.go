package repository

import (
	"errors"
	"strings"

	"github.com/splitpos-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaleRepository 销售记录数据访问接口
type SaleRepository interface {
	InsertIfAbsent(sale *models.CommissionSale) (bool, error)
	Update(sale *models.CommissionSale) error
	UpdateFields(id uint, fields map[string]interface{}) error
	SoftDelete(id uint) error
	GetByID(id uint) (*models.CommissionSale, error)
	GetBySessionID(sessionID string) (*models.CommissionSale, error)
	GetByPaymentIntentID(paymentIntentID string) (*models.CommissionSale, error)
	ListUnsettled(limit int) ([]models.CommissionSale, error)
	ListAdmin(filter SaleListFilter) ([]models.CommissionSale, int64, error)
	WithTx(tx *gorm.DB) *GormSaleRepository
}

// GormSaleRepository GORM 实现
type GormSaleRepository struct {
	db *gorm.DB
}

// NewSaleRepository 创建销售记录仓库
func NewSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSaleRepository) WithTx(tx *gorm.DB) *GormSaleRepository {
	if tx == nil {
		return r
	}
	return &GormSaleRepository{db: tx}
}

// InsertIfAbsent 条件插入销售记录。依赖 session_id / payment_intent_id
// 上的唯一索引，通过数据库端 ON CONFLICT DO NOTHING 去重，
// 返回 false 表示已存在同一检出请求的记录。
func (r *GormSaleRepository) InsertIfAbsent(sale *models.CommissionSale) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(sale)
	if result.Error != nil {
		// 部分驱动不走 ON CONFLICT 路径时仍会上报唯一键冲突
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update 更新销售记录
func (r *GormSaleRepository) Update(sale *models.CommissionSale) error {
	return r.db.Save(sale).Error
}

// UpdateFields 按字段更新销售记录
func (r *GormSaleRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.CommissionSale{}).Where("id = ?", id).Updates(fields).Error
}

// SoftDelete 软删除销售记录（仅用于确认阶段收敛重复行）
func (r *GormSaleRepository) SoftDelete(id uint) error {
	return r.db.Delete(&models.CommissionSale{}, id).Error
}

// GetByID 根据 ID 获取销售记录
func (r *GormSaleRepository) GetByID(id uint) (*models.CommissionSale, error) {
	var sale models.CommissionSale
	if err := r.db.Preload("TenantAccount").First(&sale, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// GetBySessionID 根据会话 ID 获取销售记录
func (r *GormSaleRepository) GetBySessionID(sessionID string) (*models.CommissionSale, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	var sale models.CommissionSale
	result := r.db.Where("session_id = ?", sessionID).Limit(1).Find(&sale)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &sale, nil
}

// GetByPaymentIntentID 根据支付意向 ID 获取销售记录
func (r *GormSaleRepository) GetByPaymentIntentID(paymentIntentID string) (*models.CommissionSale, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, nil
	}
	var sale models.CommissionSale
	result := r.db.Where("payment_intent_id = ?", paymentIntentID).Limit(1).Find(&sale)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &sale, nil
}

// ListUnsettled 查询待手动结算的销售记录：已完成、未结算、
// 且所属租户不支持自动分账
func (r *GormSaleRepository) ListUnsettled(limit int) ([]models.CommissionSale, error) {
	query := r.db.Model(&models.CommissionSale{}).
		Joins("JOIN tenant_accounts ON tenant_accounts.id = commission_sales.tenant_account_id").
		Where("commission_sales.status = ?", "completed").
		Where("commission_sales.transfer_id IS NULL").
		Where("tenant_accounts.can_split = ?", false).
		Preload("TenantAccount").
		Order("commission_sales.id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var sales []models.CommissionSale
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// ListAdmin 管理端销售记录列表
func (r *GormSaleRepository) ListAdmin(filter SaleListFilter) ([]models.CommissionSale, int64, error) {
	query := r.db.Model(&models.CommissionSale{})

	if filter.TenantAccountID != 0 {
		query = query.Where("tenant_account_id = ?", filter.TenantAccountID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", strings.ToUpper(strings.TrimSpace(filter.Currency)))
	}
	if filter.Unsettled {
		query = query.Where("transfer_id IS NULL")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.PendingBefore != nil {
		query = query.Where("status = ? AND created_at < ?", "pending", *filter.PendingBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var sales []models.CommissionSale
	if err := query.Order("id desc").Find(&sales).Error; err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}
