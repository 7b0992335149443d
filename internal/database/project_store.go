package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmtrack/internal/models"
)

type ProjectStore struct {
	db *gorm.DB
}

func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

type ProjectFilter struct {
	Type   string
	Status string
	Query  string // matches name, client or code
	Limit  int
	Offset int
}

// CodesWithPrefix lists codes of every project, soft-deleted ones included,
// that start with prefix+"-", highest first.
func (s *ProjectStore) CodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).
		Unscoped().
		Model(&models.Project{}).
		Where("code LIKE ?", prefix+"-%").
		Order("code desc").
		Pluck("code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Insert creates p. A clash on the code yields ErrDuplicateCode.
func (s *ProjectStore) Insert(ctx context.Context, p *models.Project) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
		}
		return err
	}
	return nil
}

func (s *ProjectStore) Get(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDetail loads a project with its child rows.
func (s *ProjectStore) GetDetail(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Members").
		Preload("Finances", func(db *gorm.DB) *gorm.DB { return db.Order("period asc") }).
		Preload("CostItems").
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("period desc") }).
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectStore) List(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	q := s.db.WithContext(ctx).Order("created_at desc").Order("id desc")

	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(client) LIKE ? OR LOWER(code) LIKE ?", like, like, like)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// Save writes every mutable column of p. Code and creation fields are never touched.
func (s *ProjectStore) Save(ctx context.Context, p *models.Project) error {
	res := s.db.WithContext(ctx).
		Model(p).
		Select("*").
		Omit("ID", "Code", "CreatedAt", "CreatedByID", "DeletedAt", clause.Associations).
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete marks the project deleted. Its code stays reserved.
func (s *ProjectStore) SoftDelete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
