package service

import (
	"context"

	"whisp/config"
	"whisp/internal/repository"
)

// PageRequest 分页参数；Paginated 为 false 时返回完整列表
type PageRequest struct {
	Page      int
	Limit     int
	Paginated bool
}

// Feed 时间线结果
type Feed struct {
	Whispers   []*WhisperView `json:"whispers"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
	Paginated  bool           `json:"-"`
}

// Body 未分页时只返回数组，分页时返回带元数据的对象
func (f *Feed) Body() interface{} {
	if !f.Paginated {
		return f.Whispers
	}
	return f
}

// FeedService 时间线与公共 Whisper 列表
type FeedService struct {
	store    *repository.Store
	composer composer
	cfg      config.FeedConfig
}

// NewFeedService 创建FeedService实例
func NewFeedService(store *repository.Store, cfg config.FeedConfig) *FeedService {
	return &FeedService{store: store, composer: composer{store: store}, cfg: cfg}
}

// GetTimeline viewer 的个人时间线：自己和未被自己拉黑的好友
func (s *FeedService) GetTimeline(ctx context.Context, viewerID uint, req PageRequest) (*Feed, error) {
	viewer, err := loadRelations(ctx, s.store, viewerID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, TimelineAuthors(viewer), req)
}

// GetPublicWhispers 全部 Whisper，不做关系过滤
func (s *FeedService) GetPublicWhispers(ctx context.Context, req PageRequest) (*Feed, error) {
	return s.list(ctx, nil, req)
}

// GetUserWhispers 个人主页的 Whisper 列表，双方存在拉黑时禁止查看
func (s *FeedService) GetUserWhispers(ctx context.Context, viewerID, authorID uint, req PageRequest) (*Feed, error) {
	if _, err := s.store.Users.GetByID(ctx, authorID); err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storeErr(err, "load user")
	}
	if viewerID != authorID {
		viewer, err := loadRelations(ctx, s.store, viewerID)
		if err != nil {
			return nil, err
		}
		author, err := loadRelations(ctx, s.store, authorID)
		if err != nil {
			return nil, err
		}
		if eitherBlocks(viewer, author) {
			return nil, forbidden("you cannot view this user's whispers")
		}
	}
	return s.list(ctx, []uint{authorID}, req)
}

func (s *FeedService) list(ctx context.Context, authorIDs []uint, req PageRequest) (*Feed, error) {
	feed := &Feed{Paginated: req.Paginated}
	offset, limit := 0, -1
	if req.Paginated {
		feed.Page, feed.Limit = s.normalize(req)
		offset, limit = (feed.Page-1)*feed.Limit, feed.Limit
	}

	whispers, total, err := s.store.Whispers.List(ctx, authorIDs, offset, limit)
	if err != nil {
		return nil, storeErr(err, "list whispers")
	}
	feed.Whispers, err = s.composer.compose(ctx, whispers)
	if err != nil {
		return nil, err
	}

	feed.Total = total
	if req.Paginated {
		feed.TotalPages = int((total + int64(feed.Limit) - 1) / int64(feed.Limit))
	}
	return feed, nil
}

func (s *FeedService) normalize(req PageRequest) (page, limit int) {
	page, limit = req.Page, req.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}
