package postgres

import (
	"context"
	"errors"

	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsOther(ctx context.Context, id int64, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id <> ? AND (username = ? OR email = ?)", id, username, email).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// Delete mirrors the ON DELETE rules of the migrations so SQLite behaves the same.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&assignmentDatamodel.MeterAssignment{}).Select("id").Where("manager_id = ?", id)
		if err := tx.Model(&assignmentDatamodel.MeterAssignment{}).
			Where("previous_assignment_id IN (?)", owned).
			Update("previous_assignment_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("manager_id = ?", id).Delete(&assignmentDatamodel.MeterAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&assignmentDatamodel.MeterAssignment{}).
			Where("engineer_id = ?", id).
			Update("engineer_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("manager_id = ? OR engineer_id = ?", id, id).Delete(&assignmentDatamodel.UserAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&userDatamodel.User{}, id).Error
	})
}
