package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-recipes-api/internal/metrics"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FollowService manages subscriptions of users to recipe authors
type FollowService interface {
	Subscribe(ctx context.Context, viewer Viewer, authorID uint, recipesLimit int) (SubscriptionView, error)
	Unsubscribe(ctx context.Context, viewer Viewer, authorID uint) error
	Subscriptions(ctx context.Context, viewer Viewer, page Page, recipesLimit int) (Paged[SubscriptionView], error)
	IsSubscribed(ctx context.Context, viewer Viewer, authorID uint) (bool, error)
}

type followService struct {
	db       *gorm.DB
	composer *Composer
}

// NewFollowService creates a new FollowService
func NewFollowService(db *gorm.DB, composer *Composer) FollowService {
	return &followService{db: db, composer: composer}
}

func (s *followService) Subscribe(ctx context.Context, viewer Viewer, authorID uint, recipesLimit int) (SubscriptionView, error) {
	if !viewer.Authenticated() {
		return SubscriptionView{}, Permission(MsgAuthRequired)
	}

	var author models.User
	if err := s.db.WithContext(ctx).First(&author, authorID).Error; err != nil {
		return SubscriptionView{}, lookupError(err, "user")
	}
	if author.ID == viewer.UserID {
		return SubscriptionView{}, Validation(MsgSelfFollow, map[string]string{"following": MsgSelfFollow})
	}

	subscribed, err := s.IsSubscribed(ctx, viewer, author.ID)
	if err != nil {
		return SubscriptionView{}, err
	}
	if subscribed {
		return SubscriptionView{}, Conflict(MsgAlreadySubscribed)
	}

	follow := models.Follow{FollowerID: viewer.UserID, FollowingID: author.ID}
	if err := s.db.WithContext(ctx).Create(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return SubscriptionView{}, Conflict(MsgAlreadySubscribed)
		}
		return SubscriptionView{}, fmt.Errorf("create subscription: %w", err)
	}

	metrics.RecordFollowChange("add")
	log.WithFields(logrus.Fields{"follower_id": viewer.UserID, "following_id": author.ID}).Info("Subscribed")

	views, err := s.composer.SubscriptionViews(ctx, viewer, []models.User{author}, recipesLimit)
	if err != nil {
		return SubscriptionView{}, err
	}
	return views[0], nil
}

func (s *followService) Unsubscribe(ctx context.Context, viewer Viewer, authorID uint) error {
	if !viewer.Authenticated() {
		return Permission(MsgAuthRequired)
	}

	var author models.User
	if err := s.db.WithContext(ctx).First(&author, authorID).Error; err != nil {
		return lookupError(err, "user")
	}

	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", viewer.UserID, author.ID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return fmt.Errorf("delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Conflict(MsgNotSubscribed)
	}

	metrics.RecordFollowChange("remove")
	log.WithFields(logrus.Fields{"follower_id": viewer.UserID, "following_id": author.ID}).Info("Unsubscribed")
	return nil
}

func (s *followService) Subscriptions(ctx context.Context, viewer Viewer, page Page, recipesLimit int) (Paged[SubscriptionView], error) {
	if !viewer.Authenticated() {
		return Paged[SubscriptionView]{}, Permission(MsgAuthRequired)
	}

	db := s.db.WithContext(ctx)
	following := db.Session(&gorm.Session{NewDB: true}).Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ?", viewer.UserID)
	q := db.Model(&models.User{}).Where("users.id IN (?)", following).Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return Paged[SubscriptionView]{}, fmt.Errorf("count subscriptions: %w", err)
	}
	var authors []models.User
	if err := q.Scopes(page.Scope).Order("users.id").Find(&authors).Error; err != nil {
		return Paged[SubscriptionView]{}, fmt.Errorf("list subscriptions: %w", err)
	}

	views, err := s.composer.SubscriptionViews(ctx, viewer, authors, recipesLimit)
	if err != nil {
		return Paged[SubscriptionView]{}, err
	}
	return Paged[SubscriptionView]{Count: count, Results: views}, nil
}

func (s *followService) IsSubscribed(ctx context.Context, viewer Viewer, authorID uint) (bool, error) {
	if !viewer.Authenticated() {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", viewer.UserID, authorID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return n > 0, nil
}
