package service

import (
	"context"
	"strings"
	"time"

	"whisp/config"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/pkg/events"
	"whisp/pkg/jwt"
	"whisp/pkg/logger"
	"whisp/pkg/password"
	"whisp/pkg/response"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	searchLimit = 20

	verificationTTL = 24 * time.Hour
)

// TokenIssuer 签发访问令牌
type TokenIssuer interface {
	GenerateToken(userID uint, extraData map[string]interface{}) (string, error)
}

// TokenRevoker 令牌黑名单
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PresenceChecker 在线状态查询
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uint) (bool, error)
}

// Profile 个人主页信息
type Profile struct {
	*response.UserInfo
	Status             string `json:"status"`
	FriendsCount       int    `json:"friendsCount"`
	MutualFriendsCount int    `json:"mutualFriendsCount"`
	IsOnline           bool   `json:"isOnline"`
}

// ProfileUpdate 资料修改，nil 字段保持不变
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   *string
}

// UserService 账号相关业务
type UserService struct {
	store     *repository.Store
	tokens    TokenIssuer
	publisher events.Publisher
	relations *RelationService
	limits    config.ContentConfig
	revoker   TokenRevoker
	presence  PresenceChecker
}

// NewUserService 创建UserService实例
func NewUserService(store *repository.Store, tokens TokenIssuer, publisher events.Publisher, limits config.ContentConfig) *UserService {
	return &UserService{
		store:     store,
		tokens:    tokens,
		publisher: publisher,
		relations: NewRelationService(store, publisher),
		limits:    limits,
	}
}

// WithRevoker 启用令牌黑名单（需要 Redis）
func (s *UserService) WithRevoker(revoker TokenRevoker) *UserService {
	s.revoker = revoker
	return s
}

// WithPresence 启用在线状态查询（需要 Redis）
func (s *UserService) WithPresence(presence PresenceChecker) *UserService {
	s.presence = presence
	return s
}

// Register 注册并返回访问令牌，同时发送验证邮件
func (s *UserService) Register(ctx context.Context, username, email, plain string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	input := accountInput{Username: username, Email: email, Password: plain}
	if err := checkAccount(input); err != nil {
		return nil, "", err
	}

	taken, err := s.store.Users.ExistsByUsername(ctx, username, 0)
	if err != nil {
		return nil, "", storeErr(err, "check username")
	}
	if taken {
		return nil, "", invalidState("username is already taken")
	}
	taken, err = s.store.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, "", storeErr(err, "check email")
	}
	if taken {
		return nil, "", invalidState("email is already registered")
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return nil, "", storeErr(err, "hash password")
	}
	verifyToken, expires := newVerificationToken()
	user := &model.User{
		Username:                 username,
		Email:                    email,
		PasswordHash:             hash,
		EmailVerificationToken:   verifyToken,
		EmailVerificationExpires: &expires,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, "", storeErr(err, "create user")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.sendVerification(ctx, user)
	publish(ctx, s.publisher, events.TopicUserRegistered, events.Event{ActorID: user.ID})
	return user, token, nil
}

// Login 使用用户名或邮箱登录
func (s *UserService) Login(ctx context.Context, identifier, plain string) (*model.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plain == "" {
		return nil, "", validation("username/email and password are required")
	}
	user, err := s.store.Users.GetByUsernameOrEmail(ctx, identifier)
	if err != nil && !isNotFound(err) {
		return nil, "", storeErr(err, "load user")
	}
	if user == nil && strings.Contains(identifier, "@") {
		user, err = s.store.Users.GetByEmail(ctx, strings.ToLower(identifier))
		if err != nil && !isNotFound(err) {
			return nil, "", storeErr(err, "load user")
		}
	}
	if user == nil || !password.Verify(plain, user.PasswordHash) {
		return nil, "", unauthorized("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// VerifyEmail 校验邮箱验证令牌
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, validation("verification token is required")
	}
	user, err := s.store.Users.GetByVerificationToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, invalidState("invalid or expired verification token")
		}
		return nil, storeErr(err, "load user")
	}
	if user.EmailVerificationExpires == nil || time.Now().After(*user.EmailVerificationExpires) {
		return nil, invalidState("invalid or expired verification token")
	}

	err = s.store.Users.Updates(ctx, user.ID, map[string]interface{}{
		"is_email_verified":          true,
		"email_verification_token":   "",
		"email_verification_expires": nil,
	})
	if err != nil {
		return nil, storeErr(err, "verify email")
	}
	user.IsEmailVerified = true
	user.EmailVerificationToken = ""
	user.EmailVerificationExpires = nil
	return user, nil
}

// ResendVerification 重新生成验证令牌并发送邮件
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkAccount(accountInput{Email: email}, "Email"); err != nil {
		return err
	}
	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return notFound("user not found")
		}
		return storeErr(err, "load user")
	}
	if user.IsEmailVerified {
		return invalidState("email is already verified")
	}

	token, expires := newVerificationToken()
	err = s.store.Users.Updates(ctx, user.ID, map[string]interface{}{
		"email_verification_token":   token,
		"email_verification_expires": expires,
	})
	if err != nil {
		return storeErr(err, "update verification token")
	}
	user.EmailVerificationToken = token
	s.sendVerification(ctx, user)
	return nil
}

// Logout 将当前令牌加入黑名单直到其过期
func (s *UserService) Logout(ctx context.Context, claims *jwt.CustomClaims) error {
	if s.revoker == nil || claims == nil || claims.ID == "" {
		return nil
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return storeErr(err, "revoke token")
	}
	return nil
}

// ChangePassword 修改密码，之前签发的令牌全部失效，返回新令牌
func (s *UserService) ChangePassword(ctx context.Context, actorID uint, current, next string) (string, error) {
	user, err := getUser(ctx, s.store, actorID)
	if err != nil {
		return "", err
	}
	if !password.Verify(current, user.PasswordHash) {
		return "", unauthorized("current password is incorrect")
	}
	if err := checkAccount(accountInput{Password: next}, "Password"); err != nil {
		return "", err
	}

	hash, err := password.Hash(next)
	if err != nil {
		return "", storeErr(err, "hash password")
	}
	// 与令牌 iat 同为毫秒精度，随后签发的新令牌不会早于修改时间
	changedAt := time.Now().Truncate(time.Millisecond)
	err = s.store.Users.Updates(ctx, actorID, map[string]interface{}{
		"password_hash":       hash,
		"password_changed_at": changedAt,
	})
	if err != nil {
		return "", storeErr(err, "update password")
	}
	return s.issueToken(user)
}

// CheckToken 认证中间件的附加检查
func (s *UserService) CheckToken(ctx context.Context, claims *jwt.CustomClaims) error {
	userID, err := claims.UserID()
	if err != nil {
		return unauthorized("invalid token subject")
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return unauthorized("user no longer exists")
		}
		return storeErr(err, "load user")
	}

	if s.revoker != nil && claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			logger.Warn("检查令牌黑名单失败", zap.Uint("user_id", userID), zap.Error(err))
		} else if revoked {
			return unauthorized("token has been revoked")
		}
	}

	if claims.IssuedAt != nil && user.TokenIssuedBeforePasswordChange(claims.IssuedAt.Time) {
		return unauthorized("password changed, please log in again")
	}
	return nil
}

// GetProfile viewer 视角下的用户主页；被对方拉黑时不可见
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID uint) (*Profile, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if viewerID != userID {
		blocked, err := s.store.Relations.IsBlocked(ctx, userID, viewerID)
		if err != nil {
			return nil, storeErr(err, "check block")
		}
		if blocked {
			return nil, forbidden("you cannot view this profile")
		}
	}

	status, err := s.relations.Status(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	friendIDs, err := s.store.Relations.FriendIDs(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "load friends")
	}
	info := response.FilterUserInfo(user)
	if info == nil {
		return nil, storeErr(errors.New("copy user info"), "build profile")
	}
	profile := &Profile{
		UserInfo:     info,
		Status:       status,
		FriendsCount: len(friendIDs),
	}
	if viewerID != userID {
		profile.UserInfo.Email = ""
		mutual, err := mutualFriendIDs(ctx, s.store, viewerID, userID)
		if err != nil {
			return nil, err
		}
		profile.MutualFriendsCount = len(mutual)
	}
	if s.presence != nil {
		online, err := s.presence.IsOnline(ctx, userID)
		if err != nil {
			logger.Warn("查询在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
		}
		profile.IsOnline = online
	}
	return profile, nil
}

// UpdateProfile 修改用户名、简介、头像
func (s *UserService) UpdateProfile(ctx context.Context, actorID uint, update ProfileUpdate) (*model.User, error) {
	fields := map[string]interface{}{}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if err := checkAccount(accountInput{Username: username}, "Username"); err != nil {
			return nil, err
		}
		taken, err := s.store.Users.ExistsByUsername(ctx, username, actorID)
		if err != nil {
			return nil, storeErr(err, "check username")
		}
		if taken {
			return nil, invalidState("username is already taken")
		}
		fields["username"] = username
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if err := checkMaxLength(bio, s.limits.MaxBioLength, "bio"); err != nil {
			return nil, err
		}
		fields["bio"] = bio
	}
	if update.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*update.Avatar)
	}

	if _, err := getUser(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.store.Users.Updates(ctx, actorID, fields); err != nil {
			return nil, storeErr(err, "update profile")
		}
	}
	return getUser(ctx, s.store, actorID)
}

// SearchUsers 按用户名搜索，不含自己
func (s *UserService) SearchUsers(ctx context.Context, actorID uint, query string) ([]*UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validation("search query cannot be empty")
	}
	users, err := s.store.Users.Search(ctx, query, actorID, searchLimit)
	if err != nil {
		return nil, storeErr(err, "search users")
	}
	return toSummaries(users), nil
}

// DeleteAccount 删除账号及其全部关系、内容和私信
func (s *UserService) DeleteAccount(ctx context.Context, actorID uint) error {
	if _, err := getUser(ctx, s.store, actorID); err != nil {
		return err
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Relations.DeleteAllFor(ctx, actorID); err != nil {
			return err
		}
		if err := tx.Whispers.DeleteByUser(ctx, actorID); err != nil {
			return err
		}
		if err := tx.Reactions.DeleteByUser(ctx, actorID); err != nil {
			return err
		}
		if err := tx.Messages.DeleteByUser(ctx, actorID); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, actorID)
	})
	if err != nil {
		return storeErr(err, "delete account")
	}
	logger.Info("账号已删除", zap.Uint("user_id", actorID))
	return nil
}

func (s *UserService) issueToken(user *model.User) (string, error) {
	token, err := s.tokens.GenerateToken(user.ID, map[string]interface{}{"username": user.Username})
	if err != nil {
		return "", storeErr(err, "generate token")
	}
	return token, nil
}

func (s *UserService) sendVerification(ctx context.Context, user *model.User) {
	publish(ctx, s.publisher, events.TopicEmailVerification, events.Event{
		ActorID: user.ID,
		Data: map[string]interface{}{
			"email":    user.Email,
			"username": user.Username,
			"token":    user.EmailVerificationToken,
		},
	})
}

func newVerificationToken() (string, time.Time) {
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return token, time.Now().Add(verificationTTL)
}
