package repository

import (
	"errors"

	"github.com/splitpos-next/internal/models"

	"gorm.io/gorm"
)

// SettlementRepository 结算数据访问接口
type SettlementRepository interface {
	CreateTransfer(transfer *models.SettlementTransfer) error
	GetTransferByID(id uint) (*models.SettlementTransfer, error)
	ListTransfersBySale(saleID uint) ([]models.SettlementTransfer, error)
	CreateRun(run *models.SettlementRun) error
	ListRuns(filter SettlementRunListFilter) ([]models.SettlementRun, int64, error)
	WithTx(tx *gorm.DB) *GormSettlementRepository
}

// GormSettlementRepository GORM 实现
type GormSettlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository 创建结算仓库
func NewSettlementRepository(db *gorm.DB) *GormSettlementRepository {
	return &GormSettlementRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSettlementRepository) WithTx(tx *gorm.DB) *GormSettlementRepository {
	if tx == nil {
		return r
	}
	return &GormSettlementRepository{db: tx}
}

// CreateTransfer 创建结算转账记录
func (r *GormSettlementRepository) CreateTransfer(transfer *models.SettlementTransfer) error {
	return r.db.Create(transfer).Error
}

// GetTransferByID 根据 ID 获取结算转账记录
func (r *GormSettlementRepository) GetTransferByID(id uint) (*models.SettlementTransfer, error) {
	var transfer models.SettlementTransfer
	if err := r.db.First(&transfer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

// ListTransfersBySale 获取某销售记录的转账记录
func (r *GormSettlementRepository) ListTransfersBySale(saleID uint) ([]models.SettlementTransfer, error) {
	var transfers []models.SettlementTransfer
	if err := r.db.Where("commission_sale_id = ?", saleID).Order("id desc").Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}

// CreateRun 创建结算批次记录
func (r *GormSettlementRepository) CreateRun(run *models.SettlementRun) error {
	return r.db.Create(run).Error
}

// ListRuns 结算批次列表
func (r *GormSettlementRepository) ListRuns(filter SettlementRunListFilter) ([]models.SettlementRun, int64, error) {
	query := r.db.Model(&models.SettlementRun{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var runs []models.SettlementRun
	if err := query.Order("id desc").Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
