package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type userStore interface {
	Users(ctx context.Context) ([]models.User, error)
	SaveUsers(ctx context.Context, users []models.User) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret      string
	AccessTokenExpiry      time.Duration
	Issuer                 string
	DefaultAdminUsername   string
	DefaultAdminPassword   string
	DefaultTeacherPassword string
	DefaultStudentPassword string
}

// AuthService authenticates users of the users dataset and issues access tokens.
type AuthService struct {
	users     userStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	hashCost  int
	mu        sync.Mutex
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users userStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.DefaultAdminUsername == "" {
		config.DefaultAdminUsername = "admin"
	}
	return &AuthService{users: users, validator: validate, logger: logger, config: config, hashCost: bcrypt.DefaultCost}
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	idx := -1
	for i := range users {
		if users[i].Username == username {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, appErrors.ErrInvalidCredentials
	}
	user := &users[idx]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account is inactive")
	}

	issuedAt := time.Now().UTC()
	accessToken, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	user.LastLogin = &issuedAt
	if err := s.users.SaveUsers(ctx, users); err != nil {
		s.logger.Warn("failed to update last login", zap.String("username", username), zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        user.Public(),
	}, nil
}

// loadUsers reads the dataset and seeds the default administrator into an empty one.
func (s *AuthService) loadUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.Users(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	if len(users) > 0 || s.config.DefaultAdminPassword == "" {
		return users, nil
	}

	admin, err := s.newUser(s.config.DefaultAdminUsername, "Administrator", models.RoleAdmin, s.config.DefaultAdminPassword)
	if err != nil {
		return nil, err
	}
	users = append(users, admin)
	if err := s.users.SaveUsers(ctx, users); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed default administrator")
	}
	s.logger.Info("seeded default administrator", zap.String("username", admin.Username))
	return users, nil
}

func (s *AuthService) newUser(username, name string, role models.UserRole, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.User{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Me returns the public profile of the user behind a token.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	users, err := s.users.Users(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	for _, user := range users {
		if user.ID == userID {
			info := user.Public()
			return &info, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

// ListUsers returns every account without credentials, ordered by username.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.UserInfo, error) {
	users, err := s.users.Users(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	infos := make([]models.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, user.Public())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos, nil
}

// SyncFromTimetable creates a teacher account for every teacher and a student account for
// every section of rows that does not have one yet. It returns the number of accounts created.
func (s *AuthService) SyncFromTimetable(ctx context.Context, rows []models.TimetableRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(users))
	for _, user := range users {
		taken[user.Username] = true
	}

	teachers, sections := distinctNames(rows)
	created := 0
	add := func(username, name string, role models.UserRole, password string, link func(*models.User)) error {
		if taken[username] {
			return nil
		}
		user, err := s.newUser(username, name, role, password)
		if err != nil {
			return err
		}
		link(&user)
		users = append(users, user)
		taken[username] = true
		created++
		return nil
	}
	for _, teacher := range teachers {
		name := teacher
		if err := add("t_"+slugifyUsername(teacher), teacher, models.RoleTeacher, s.config.DefaultTeacherPassword,
			func(u *models.User) { u.TeacherName = name }); err != nil {
			return created, err
		}
	}
	for _, section := range sections {
		name := section
		if err := add("s_"+slugifyUsername(section), section, models.RoleStudent, s.config.DefaultStudentPassword,
			func(u *models.User) { u.Section = name }); err != nil {
			return created, err
		}
	}

	if created == 0 {
		return 0, nil
	}
	if err := s.users.SaveUsers(ctx, users); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save users")
	}
	s.logger.Info("accounts created from timetable", zap.Int("created", created))
	return created, nil
}

func distinctNames(rows []models.TimetableRow) (teachers, sections []string) {
	seenTeachers := make(map[string]bool)
	seenSections := make(map[string]bool)
	for _, row := range rows {
		if teacher := strings.TrimSpace(row.Teacher); teacher != "" && !seenTeachers[teacher] {
			seenTeachers[teacher] = true
			teachers = append(teachers, teacher)
		}
		if section := strings.TrimSpace(row.Section); section != "" && !seenSections[section] {
			seenSections[section] = true
			sections = append(sections, section)
		}
	}
	sort.Strings(teachers)
	sort.Strings(sections)
	return teachers, sections
}

func slugifyUsername(value string) string {
	parts := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return "user"
	}
	return strings.Join(parts, "_")
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Name:     user.Name,
		Teacher:  user.TeacherName,
		Section:  user.Section,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}
