package service

import (
	"errors"
	"fmt"

	"askdocs-go/internal/model"
	"askdocs-go/internal/repository"
	"askdocs-go/pkg/token"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken 表示用户名已被占用。
	ErrUsernameTaken = errors.New("用户名已存在")
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	// ErrUserNotFound 表示用户不存在。
	ErrUserNotFound = errors.New("用户不存在")
)

// TokenPair 是登录成功后下发的令牌对。
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserService 负责用户注册与登录。
type UserService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建用户服务。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) *UserService {
	return &UserService{userRepo: userRepo, jwtManager: jwtManager}
}

// Register 注册新用户，密码使用 bcrypt 加盐存储。
func (s *UserService) Register(username, password string) error {
	existing, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         "user",
	}
	if err := s.userRepo.Create(user); err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// Login 校验凭证并签发令牌对。
func (s *UserService) Login(username, password string) (*TokenPair, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("签发令牌失败: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("签发刷新令牌失败: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Profile 根据令牌中的用户 ID 返回用户资料。
func (s *UserService) Profile(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
