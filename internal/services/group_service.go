package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// groupService handles group-related business logic.
type groupService struct {
	db *gorm.DB
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB) GroupServicer {
	return &groupService{db: db}
}

// CreateGroup creates a group with the given admin and initial members.
// The admin is always a member, whether or not they appear in memberIDs.
func (s *groupService) CreateGroup(adminID uint, name, description string, memberIDs []uint) (*models.Group, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
	}

	ids := []uint{adminID}
	for _, id := range memberIDs {
		if id != adminID {
			ids = append(ids, id)
		}
	}

	var members []models.User
	if err := s.db.Find(&members, ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(members) != len(ids) {
		return nil, apperrors.WithMessage(apperrors.ErrUserNotFound, "one or more members do not exist")
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		AdminID:     &adminID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(group).Association("Members").Append(&members); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	group.Members = members
	return group, nil
}

// GetUserGroups retrieves a paginated list of the groups the user belongs to.
func (s *groupService) GetUserGroups(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
	page.Defaults()

	base := s.db.Model(&models.Group{}).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var groups []models.Group
	if err := base.Scopes(pagination.Paginate(page)).Order("groups.created_at DESC").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(groups, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// GetGroupByID retrieves a group with its members. The requesting user must
// be a member.
func (s *groupService) GetGroupByID(userID, groupID uint) (*models.Group, error) {
	var group models.Group
	if err := s.db.Preload("Members").First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	member, err := s.IsMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrNotGroupMember
	}
	return &group, nil
}

// AddMember adds a user to a group. Only existing members may add others.
func (s *groupService) AddMember(actorID, groupID, userID uint) (*models.Group, error) {
	group, err := s.GetGroupByID(actorID, groupID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	already, err := s.IsMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if already {
		return group, nil
	}

	if err := s.db.Model(group).Association("Members").Append(&user); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	group.Members = append(group.Members, user)
	return group, nil
}

// IsMember reports whether the user belongs to the group.
func (s *groupService) IsMember(groupID, userID uint) (bool, error) {
	var count int64
	err := s.db.Table("group_members").
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}
