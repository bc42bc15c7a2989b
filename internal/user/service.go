package user

import (
	defError "errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/permission"
)

// UserSummary is the admin-facing user list entry.
type UserSummary struct {
	domain.SafeUser
	ListingCount int64 `json:"listing_count"`
}

// Service defines the interface for user business logic
type Service interface {
	Register(user *domain.User) error
	Login(email, password string) (*domain.User, error)
	GetUserByID(id string) (*domain.User, error)
	ListUsers(actor permission.Actor) ([]UserSummary, error)
	ChangeRole(actor permission.Actor, targetUserID string, role domain.Role) (*domain.SafeUser, error)
	DeleteUser(actor permission.Actor, targetUserID string) error
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user. The role always starts as ADVISOR; only an
// admin can raise it afterwards.
func (s *DefaultService) Register(user *domain.User) error {
	// Check if user with email already exists
	_, err := s.repository.FindByEmail(user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Can't hash password", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Role = domain.RoleAdvisor
	user.IsActive = true

	return s.repository.Create(user)
}

// Login authenticates a user
func (s *DefaultService) Login(email, password string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(email)
	if err != nil {
		return nil, errors.Unauthorized("User not found", err)
	}

	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errors.UnprocessableEntity("Wrong password", err)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(id string) (*domain.User, error) {
	return s.repository.FindByID(id)
}

func (s *DefaultService) ListUsers(actor permission.Actor) ([]UserSummary, error) {
	if !permission.CanManageUsers(actor) {
		return nil, errors.Forbidden("Admin access required", nil)
	}

	rows, err := s.repository.ListWithListingCounts()
	if err != nil {
		return nil, err
	}

	result := make([]UserSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, UserSummary{
			SafeUser:     row.User.ToSafeUser(),
			ListingCount: row.ListingCount,
		})
	}
	return result, nil
}

// ChangeRole assigns a new role to the target user. An admin may not change
// their own role away from ADMIN.
func (s *DefaultService) ChangeRole(actor permission.Actor, targetUserID string, role domain.Role) (*domain.SafeUser, error) {
	if !permission.CanManageUsers(actor) {
		return nil, errors.Forbidden("Admin access required", nil)
	}

	if !role.Valid() {
		return nil, errors.BadRequest("Invalid role", nil)
	}

	if targetUserID == actor.ID && role != domain.RoleAdmin {
		return nil, errors.BadRequest("You cannot change your own role", nil)
	}

	if err := s.repository.UpdateRole(targetUserID, role); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, err
	}

	updated, err := s.repository.FindByID(targetUserID)
	if err != nil {
		return nil, err
	}
	safe := updated.ToSafeUser()
	return &safe, nil
}

// DeleteUser removes the target user and, by cascade, their listings. An
// admin may not delete their own account.
func (s *DefaultService) DeleteUser(actor permission.Actor, targetUserID string) error {
	if !permission.CanManageUsers(actor) {
		return errors.Forbidden("Admin access required", nil)
	}

	if targetUserID == actor.ID {
		return errors.BadRequest("You cannot delete your own account", nil)
	}

	if err := s.repository.Delete(targetUserID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("User not found", err)
		}
		return err
	}
	return nil
}
