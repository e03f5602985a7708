package data

import (
	"context"
	"fmt"
	"time"

	"reportvault/internal/pkg/database"
	"reportvault/internal/report/biz"
)

// ReportPO 报告数据库模型
type ReportPO struct {
	ID          string    `gorm:"type:uuid;primarykey"`
	Title       string    `gorm:"column:title;size:255;not null"`
	Author      string    `gorm:"column:author;size:255;not null"`
	Description string    `gorm:"column:description;type:text"`
	StoredName  string    `gorm:"column:stored_name;size:500"`
	StoredPath  string    `gorm:"column:stored_path;size:1000"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_reports_created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (ReportPO) TableName() string {
	return "reports"
}

// ReportRepo 报告仓储实现
type ReportRepo struct {
	db *database.DB
}

// NewReportRepo 创建报告仓储
func NewReportRepo(db *database.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create 创建报告
func (r *ReportRepo) Create(ctx context.Context, report *biz.Report) error {
	po := r.toPO(report)
	if err := r.db.WithContext(ctx).GetDB().Create(po).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取报告
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*biz.Report, error) {
	var po ReportPO
	err := r.db.WithContext(ctx).GetDB().Where("id = ?", id).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r.toDomain(&po), nil
}

// List 按创建时间倒序列出全部报告
func (r *ReportRepo) List(ctx context.Context) ([]*biz.Report, error) {
	var pos []ReportPO
	err := r.db.WithContext(ctx).GetDB().Order("created_at DESC").Find(&pos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*biz.Report, len(pos))
	for i := range pos {
		reports[i] = r.toDomain(&pos[i])
	}
	return reports, nil
}

// Update 更新报告（全字段覆盖，包括附件引用）
func (r *ReportRepo) Update(ctx context.Context, report *biz.Report) error {
	po := r.toPO(report)
	res := r.db.WithContext(ctx).GetDB().
		Model(&ReportPO{}).
		Where("id = ?", report.ID).
		Updates(map[string]interface{}{
			"title":       po.Title,
			"author":      po.Author,
			"description": po.Description,
			"stored_name": po.StoredName,
			"stored_path": po.StoredPath,
			"updated_at":  po.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrReportNotFound
	}
	return nil
}

// Delete 删除报告并返回删除前的状态
func (r *ReportRepo) Delete(ctx context.Context, id string) (*biz.Report, error) {
	var po ReportPO
	db := r.db.WithContext(ctx).GetDB()

	err := db.Where("id = ?", id).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := db.Delete(&ReportPO{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete report: %w", err)
	}

	return r.toDomain(&po), nil
}

func (r *ReportRepo) toPO(report *biz.Report) *ReportPO {
	po := &ReportPO{
		ID:          report.ID,
		Title:       report.Title,
		Author:      report.Author,
		Description: report.Description,
		CreatedAt:   report.CreatedAt,
		UpdatedAt:   report.UpdatedAt,
	}
	if report.Blob != nil {
		po.StoredName = report.Blob.StoredName
		po.StoredPath = report.Blob.StoredPath
	}
	return po
}

func (r *ReportRepo) toDomain(po *ReportPO) *biz.Report {
	report := &biz.Report{
		ID:          po.ID,
		Title:       po.Title,
		Author:      po.Author,
		Description: po.Description,
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
	}
	if po.StoredName != "" {
		report.Blob = &biz.BlobRef{
			StoredName: po.StoredName,
			StoredPath: po.StoredPath,
		}
	}
	return report
}
