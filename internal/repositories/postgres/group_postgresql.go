package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/cache"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

type GroupPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewGroupPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.GroupRepository {
	return &GroupPostgreSQL{db: db, cacheManager: cacheManager}
}

func (g *GroupPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return g.db
}

func (g *GroupPostgreSQL) Create(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	db := g.getDB(tx)
	return db.WithContext(ctx).Create(group).Error
}

func (g *GroupPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error) {
	db := g.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var group models.Group

	err := g.cacheManager.Group.CacheOrExecute(ctx, cacheKey, &group, cache.GroupCacheConfig.TTL, func() (interface{}, error) {
		var dbGroup models.Group
		if err := db.WithContext(ctx).First(&dbGroup, id).Error; err != nil {
			return nil, err
		}
		return &dbGroup, nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (g *GroupPostgreSQL) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Group, error) {
	db := g.getDB(tx)
	var group models.Group
	if err := db.WithContext(ctx).First(&group, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (g *GroupPostgreSQL) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	db := g.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Group{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GroupPostgreSQL) Update(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Save(group).Error; err != nil {
		return err
	}
	g.cacheManager.InvalidateGroup(ctx, group.ID)
	return nil
}

func (g *GroupPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Group{}, id).Error; err != nil {
		return err
	}
	g.cacheManager.InvalidateGroup(ctx, id)
	return nil
}

func (g *GroupPostgreSQL) ListByCreator(ctx context.Context, tx *gorm.DB, creatorID string) ([]*models.Group, error) {
	db := g.getDB(tx)
	var groups []*models.Group
	if err := db.WithContext(ctx).
		Where("created_by = ?", creatorID).
		Order("created_at DESC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ===== MEMBERSHIP =====

func (g *GroupPostgreSQL) AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Create(member).Error; err != nil {
		return err
	}
	g.cacheManager.InvalidateGroup(ctx, member.GroupID)
	return nil
}

func (g *GroupPostgreSQL) RemoveMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) error {
	db := g.getDB(tx)
	result := db.WithContext(ctx).
		Where("group_id = ? AND student_id = ?", groupID, studentID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	g.cacheManager.InvalidateGroup(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) IsMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) (bool, error) {
	db := g.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND student_id = ?", groupID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GroupPostgreSQL) ListMembers(ctx context.Context, tx *gorm.DB, groupID uint) ([]*models.GroupMember, error) {
	db := g.getDB(tx)
	var members []*models.GroupMember
	if err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Student").
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (g *GroupPostgreSQL) ListGroupsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.Group, error) {
	db := g.getDB(tx)
	var groups []*models.Group
	if err := db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.student_id = ?", studentID).
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ===== QUIZ ASSIGNMENT =====

func (g *GroupPostgreSQL) AssignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error {
	db := g.getDB(tx)
	assignment := models.GroupQuiz{GroupID: groupID, QuizID: quizID}
	if err := db.WithContext(ctx).Create(&assignment).Error; err != nil {
		return err
	}
	g.cacheManager.InvalidateGroup(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) UnassignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error {
	db := g.getDB(tx)
	result := db.WithContext(ctx).
		Where("group_id = ? AND quiz_id = ?", groupID, quizID).
		Delete(&models.GroupQuiz{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	g.cacheManager.InvalidateGroup(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) ListQuizIDs(ctx context.Context, tx *gorm.DB, groupID uint) ([]uint, error) {
	db := g.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).
		Model(&models.GroupQuiz{}).
		Where("group_id = ?", groupID).
		Pluck("quiz_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (g *GroupPostgreSQL) ListGroupIDsForQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]uint, error) {
	db := g.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).
		Model(&models.GroupQuiz{}).
		Where("quiz_id = ?", quizID).
		Pluck("group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (g *GroupPostgreSQL) StudentHasQuizAccess(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (bool, error) {
	db := g.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.GroupQuiz{}).
		Joins("JOIN group_members ON group_members.group_id = group_quizzes.group_id").
		Where("group_quizzes.quiz_id = ? AND group_members.student_id = ?", quizID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
