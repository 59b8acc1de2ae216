package repository

import (
	"errors"
	"strings"

	"github.com/splitpos-next/internal/models"

	"gorm.io/gorm"
)

// TenantRepository 租户账户数据访问接口
type TenantRepository interface {
	Create(tenant *models.TenantAccount) error
	Update(tenant *models.TenantAccount) error
	GetByID(id uint) (*models.TenantAccount, error)
	GetByUserID(userID uint) (*models.TenantAccount, error)
	GetByAccountID(accountID string) (*models.TenantAccount, error)
	ListAdmin(filter TenantListFilter) ([]models.TenantAccount, int64, error)
	WithTx(tx *gorm.DB) *GormTenantRepository
}

// GormTenantRepository GORM 实现
type GormTenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓库
func NewTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTenantRepository) WithTx(tx *gorm.DB) *GormTenantRepository {
	if tx == nil {
		return r
	}
	return &GormTenantRepository{db: tx}
}

// Create 创建租户账户
func (r *GormTenantRepository) Create(tenant *models.TenantAccount) error {
	return r.db.Create(tenant).Error
}

// Update 更新租户账户
func (r *GormTenantRepository) Update(tenant *models.TenantAccount) error {
	return r.db.Save(tenant).Error
}

// GetByID 根据 ID 获取租户账户
func (r *GormTenantRepository) GetByID(id uint) (*models.TenantAccount, error) {
	var tenant models.TenantAccount
	if err := r.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

// GetByUserID 根据用户 ID 获取租户账户
func (r *GormTenantRepository) GetByUserID(userID uint) (*models.TenantAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var tenant models.TenantAccount
	result := r.db.Where("user_id = ?", userID).Limit(1).Find(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &tenant, nil
}

// GetByAccountID 根据处理方账户 ID 获取租户账户
func (r *GormTenantRepository) GetByAccountID(accountID string) (*models.TenantAccount, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil
	}
	var tenant models.TenantAccount
	result := r.db.Where("account_id = ?", accountID).Limit(1).Find(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &tenant, nil
}

// ListAdmin 管理端租户列表
func (r *GormTenantRepository) ListAdmin(filter TenantListFilter) ([]models.TenantAccount, int64, error) {
	query := r.db.Model(&models.TenantAccount{})

	if filter.Country != "" {
		query = query.Where("country = ?", strings.ToUpper(strings.TrimSpace(filter.Country)))
	}
	if filter.AccountKind != "" {
		query = query.Where("account_kind = ?", filter.AccountKind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CanSplit != nil {
		query = query.Where("can_split = ?", *filter.CanSplit)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var tenants []models.TenantAccount
	if err := query.Order("id desc").Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}
